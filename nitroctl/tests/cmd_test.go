package tests

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/sanxfxteam/NitroGen/nitroctl/cmd"
	"github.com/sanxfxteam/NitroGen/pkg/server"
)

// startStubServer runs a real model server on a loopback port and returns
// the host/port pair for passing to commands via flags.
func startStubServer(t *testing.T) (host string, port string) {
	t.Helper()
	srv := server.New(server.NewStaticHandler(), server.WithLogger(zerolog.Nop()))
	addr, err := srv.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	go srv.Serve()
	t.Cleanup(srv.Stop)

	host, port, err = net.SplitHostPort(addr.String())
	if err != nil {
		t.Fatalf("failed to split addr %q: %v", addr, err)
	}
	return host, port
}

func executeCommand(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root := cmd.RootCmd()
	// Flag values persist on the shared root command between Execute calls;
	// clear the output format so one test's -o doesn't leak into the next.
	root.PersistentFlags().Set("output", "")
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := executeCommand("version")
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if !strings.Contains(out, "nitroctl version") {
		t.Errorf("expected output to contain 'nitroctl version', got: %s", out)
	}
}

func TestInfoCommand(t *testing.T) {
	host, port := startStubServer(t)
	out, err := executeCommand("info", "--host", host, "--port", port)
	if err != nil {
		t.Fatalf("info command failed: %v", err)
	}
	if !strings.Contains(out, "episode_length") {
		t.Errorf("expected output to contain 'episode_length', got: %s", out)
	}
}

func TestInfoCommandJSON(t *testing.T) {
	host, port := startStubServer(t)
	out, err := executeCommand("info", "--host", host, "--port", port, "-o", "json")
	if err != nil {
		t.Fatalf("info -o json command failed: %v", err)
	}
	if !strings.Contains(out, "\"episode_length\"") {
		t.Errorf("expected JSON output with 'episode_length' field, got: %s", out)
	}
}

func TestResetCommand(t *testing.T) {
	host, port := startStubServer(t)
	out, err := executeCommand("reset", "--host", host, "--port", port)
	if err != nil {
		t.Fatalf("reset command failed: %v", err)
	}
	if !strings.Contains(out, "Session reset.") {
		t.Errorf("expected output to contain 'Session reset.', got: %s", out)
	}
}

func TestPredictCommand(t *testing.T) {
	host, port := startStubServer(t)

	// Write a small PNG frame to feed the command.
	frame := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			frame.Set(x, y, color.RGBA{R: 40, G: 80, B: 120, A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "frame.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create frame file: %v", err)
	}
	if err := png.Encode(f, frame); err != nil {
		t.Fatalf("failed to encode frame: %v", err)
	}
	f.Close()

	out, err := executeCommand("predict", path, "--host", host, "--port", port)
	if err != nil {
		t.Fatalf("predict command failed: %v", err)
	}
	if !strings.Contains(out, "BUTTONS") {
		t.Errorf("expected action table with BUTTONS header, got: %s", out)
	}
}

func TestPredictMissingFile(t *testing.T) {
	host, port := startStubServer(t)
	_, err := executeCommand("predict", "/nonexistent/frame.png", "--host", host, "--port", port)
	if err == nil {
		t.Fatalf("expected error for missing frame file, got nil")
	}
}

func TestConnectionRefused(t *testing.T) {
	// Grab a port with nothing listening on it.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	_, err = executeCommand("info", "--host", "127.0.0.1", "--port", strconv.Itoa(port))
	if err == nil {
		t.Fatalf("expected connection error, got nil")
	}
	if !strings.Contains(err.Error(), "connect to model server") {
		t.Errorf("expected connection setup error, got: %v", err)
	}
}
