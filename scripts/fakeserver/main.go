// Command fakeserver is a minimal local chat server for trying the bot by
// hand. It accepts one client at a time, completes the login handshake and
// relays stdin to the client.
//
// Input lines:
//
//	chat <room> <user> <text>   chat message from user
//	join <room> <user>          user joins room
//	leave <room> <user>         user leaves room
//	pm <user> <text>            private message to the bot
//	anything else               sent as-is, with \n expanded
package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	logpkg "github.com/vovakirdan/wirebot/internal/log"
)

const assertion = "fakeserver-assertion-0123456789abcdefghijklmnopqrstuvwxyz"

type server struct {
	log  *zerolog.Logger
	mu   sync.Mutex
	conn *websocket.Conn
	nick string
}

func main() {
	var (
		addr     string
		logLevel string
	)
	cmd := &cobra.Command{
		Use:   "fakeserver",
		Short: "Local chat server for manual bot testing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := &server{log: logpkg.New(logLevel)}
			return s.run(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:8000", "listen address")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func (s *server) run(ctx context.Context, addr string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/showdown/websocket", s.handleWS)
	mux.HandleFunc("/action.php", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(assertion))
	})
	srv := &http.Server{Addr: addr, Handler: mux}

	go s.readStdin(ctx)
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	s.log.Info().
		Str("ws", "ws://"+addr+"/showdown/websocket").
		Str("action_url", "http://"+addr+"/action.php").
		Msg("fake server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *server) handleWS(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		s.log.Warn().Err(err).Msg("accept")
		return
	}
	defer c.CloseNow()

	s.mu.Lock()
	s.conn = c
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		if s.conn == c {
			s.conn = nil
		}
		s.mu.Unlock()
	}()

	ctx := r.Context()
	s.log.Info().Msg("client connected")
	s.send(ctx, "|challstr|4|fakechallenge")

	for {
		_, data, err := c.Read(ctx)
		if err != nil {
			s.log.Info().Err(err).Msg("client disconnected")
			return
		}
		line := string(data)
		s.log.Info().Str("line", line).Msg("bot")
		s.respond(ctx, line)
	}
}

// respond plays the server side of the commands the bot sends.
func (s *server) respond(ctx context.Context, line string) {
	room, text, ok := strings.Cut(line, "|")
	if !ok {
		return
	}
	switch {
	case strings.HasPrefix(text, "/trn "):
		nick, _, _ := strings.Cut(strings.TrimPrefix(text, "/trn "), ",")
		s.mu.Lock()
		s.nick = nick
		s.mu.Unlock()
		s.send(ctx, "|updateuser| "+nick+"|1|1|{}")
	case strings.HasPrefix(text, "/join "):
		target := strings.TrimSpace(strings.TrimPrefix(text, "/join "))
		s.mu.Lock()
		nick := s.nick
		s.mu.Unlock()
		s.send(ctx, ">"+target+"\n|init|chat\n|title|"+target+"\n|users|1,@"+nick)
	case strings.HasPrefix(text, "/userauth"):
		s.send(ctx, "|popup|Room auth: "+room)
	}
}

func (s *server) readStdin(ctx context.Context) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		frame := translate(scanner.Text())
		if frame == "" {
			continue
		}
		s.send(ctx, frame)
	}
}

func (s *server) send(ctx context.Context, frame string) {
	s.mu.Lock()
	c := s.conn
	s.mu.Unlock()
	if c == nil {
		s.log.Warn().Msg("no client connected")
		return
	}
	if err := c.Write(ctx, websocket.MessageText, []byte(frame)); err != nil {
		s.log.Warn().Err(err).Msg("write")
		return
	}
	s.log.Debug().Str("frame", frame).Msg("sent")
}

// translate expands an input line into a protocol frame.
func translate(input string) string {
	fields := strings.SplitN(strings.TrimSpace(input), " ", 4)
	switch {
	case len(fields) == 0 || fields[0] == "":
		return ""
	case fields[0] == "chat" && len(fields) == 4:
		return fmt.Sprintf(">%s\n|c| %s|%s", fields[1], fields[2], fields[3])
	case fields[0] == "join" && len(fields) == 3:
		return fmt.Sprintf(">%s\n|J| %s", fields[1], fields[2])
	case fields[0] == "leave" && len(fields) == 3:
		return fmt.Sprintf(">%s\n|L| %s", fields[1], fields[2])
	case fields[0] == "pm" && len(fields) >= 3:
		return fmt.Sprintf("|pm| %s| Bot|%s", fields[1], strings.Join(fields[2:], " "))
	default:
		return strings.ReplaceAll(input, `\n`, "\n")
	}
}
