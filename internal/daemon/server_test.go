package daemon

import (
	"bufio"
	"context"
	"errors"
	"net"
	"os"
	"testing"
	"time"

	"github.com/tessro/dbxlink/internal/wire"
)

func TestServer_StartStop(t *testing.T) {
	opts := testOptions(socketDir(t))
	srv := NewServer(opts.CommandSocket, opts.HookSocket, nil)

	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := srv.Start(); err == nil {
		t.Error("second Start() should fail")
	}
	for _, p := range []string{opts.CommandSocket, opts.HookSocket} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("socket %s: %v", p, err)
		}
	}

	if err := srv.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	for _, p := range []string{opts.CommandSocket, opts.HookSocket} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("socket %s not removed", p)
		}
	}
	if err := srv.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}

func TestServer_Answers(t *testing.T) {
	opts := testOptions(socketDir(t))
	startFakeDaemon(t, opts, HandlerFunc(func(ctx context.Context, req *Request) (*wire.Args, error) {
		switch req.Name {
		case "echo":
			return req.Args, nil
		case "custom":
			return nil, &wire.RemoteError{Status: "busy"}
		default:
			return nil, errors.New("unknown command")
		}
	}))

	conn, err := net.Dial("unix", opts.CommandSocket)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	r := bufio.NewReader(conn)

	tests := []struct {
		name       string
		args       *wire.Args
		wantStatus string
	}{
		{"echo", wire.NewArgs().Set("path", "/tab\there"), "ok"},
		{"custom", nil, "busy"},
		{"missing", nil, StatusNotOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := wire.WriteRequest(conn, tt.name, tt.args); err != nil {
				t.Fatal(err)
			}
			res, err := wire.ReadResponse(r)
			if tt.wantStatus == "ok" {
				if err != nil {
					t.Fatalf("ReadResponse() error = %v", err)
				}
				if !res.Equal(tt.args) {
					t.Errorf("echo = %v, want %v", res.Map(), tt.args.Map())
				}
				return
			}
			var re *wire.RemoteError
			if !errors.As(err, &re) || re.Status != tt.wantStatus {
				t.Errorf("error = %v, want status %q", err, tt.wantStatus)
			}
		})
	}
}

func TestServer_Notify(t *testing.T) {
	opts := testOptions(socketDir(t))
	srv := startFakeDaemon(t, opts, nil)

	conn, err := net.Dial("unix", opts.HookSocket)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	deadline := time.Now().Add(waitTimeout)
	for srv.HookClients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("hook client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if n := srv.Notify(HookShellTouch, wire.NewArgs().Set("path", "/x")); n != 1 {
		t.Errorf("Notify() reached %d clients, want 1", n)
	}

	var p wire.Parser
	buf := make([]byte, 256)
	conn.SetReadDeadline(time.Now().Add(waitTimeout))
	for {
		n, err := conn.Read(buf)
		if err != nil {
			t.Fatal(err)
		}
		msgs, err := p.Feed(buf[:n])
		if err != nil {
			t.Fatal(err)
		}
		if len(msgs) > 0 {
			if msgs[0].Name != HookShellTouch || msgs[0].Args.First("path") != "/x" {
				t.Errorf("got %s %v", msgs[0].Name, msgs[0].Args.Map())
			}
			return
		}
	}
}
