package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/term"
)

const (
	exitOK      = 0
	exitFailed  = 1
	exitUsage   = 2
	dialTimeout = 10 * time.Second
)

type jobState struct {
	ID         string  `json:"id"`
	Status     string  `json:"status"`
	Progress   int     `json:"progress"`
	Message    string  `json:"message"`
	ETASeconds *int    `json:"etaSeconds"`
	Timemark   *string `json:"timemark"`
	Estimated  bool    `json:"estimated"`
}

type statusMessage struct {
	Type  string   `json:"type"`
	ID    string   `json:"id"`
	Job   jobState `json:"job"`
	Error string   `json:"error"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("vidwatch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	server := fs.String("server", envOr("VIDSHARE_URL", "http://localhost:3000"), "vidshare base URL")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: vidwatch [-server URL] <media-id> [media-id...]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	ids := fs.Args()
	if len(ids) == 0 {
		fs.Usage()
		return exitUsage
	}

	wsURL, err := socketURL(*server)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, wsURL, nil)
	cancel()
	if err != nil {
		fmt.Fprintf(stderr, "Error: connecting to %s: %v\n", wsURL, err)
		return exitFailed
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	for _, id := range ids {
		if err := conn.WriteJSON(map[string]string{"type": "subscribe", "id": id}); err != nil {
			fmt.Fprintf(stderr, "Error: subscribing to %s: %v\n", id, err)
			return exitFailed
		}
	}

	r := newRenderer(stdout, terminalWidth(stdout))
	w := newWatch(ids)
	for !w.finished() {
		var msg statusMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return exitFailed
			}
			fmt.Fprintf(stderr, "\nError: connection lost: %v\n", err)
			return exitFailed
		}
		if msg.Type == "error" {
			fmt.Fprintf(stderr, "Server error: %s\n", msg.Error)
			continue
		}
		if !w.update(msg.ID, msg.Job) {
			continue
		}
		r.render(msg.ID, msg.Job)
	}
	r.done()

	if w.failed() {
		return exitFailed
	}
	return exitOK
}

// terminalWidth returns the column count when out is a terminal, 0
// otherwise. A zero width switches the renderer to line output.
func terminalWidth(out io.Writer) int {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}

func socketURL(base string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid server URL %q: scheme must be http or https", base)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid server URL %q: missing host", base)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	u.RawQuery = ""
	return u.String(), nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
