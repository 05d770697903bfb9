package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"livequiz/internal/app"
	"livequiz/internal/config"
	"livequiz/internal/domain"
	"livequiz/internal/metrics"
	transporthttp "livequiz/internal/transport/http"
)

type hostFlags struct {
	port      string
	bind      string
	generator string
	publicURL string
	qrPath    string
}

// NewHostCmd builds the CLI subcommand that hosts a game session.
func NewHostCmd(opts *rootOptions) *cobra.Command {
	flags := &hostFlags{}
	cmd := &cobra.Command{
		Use:   "host",
		Short: "Host a quiz session and drive it from the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHost(cmd.Context(), opts, flags, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&flags.port, "port", "p", "", "port to listen on (env: LIVEQUIZ_PORT)")
	fs.StringVarP(&flags.bind, "bind", "b", "", "address to bind to (env: LIVEQUIZ_BIND)")
	fs.StringVarP(&flags.generator, "generator", "g", "", "question source: gemini, postgres, sqlite or static (env: LIVEQUIZ_GENERATOR)")
	fs.StringVar(&flags.publicURL, "public-url", "", "address players dial, announced via the code registry (env: LIVEQUIZ_PUBLIC_URL)")
	fs.StringVar(&flags.qrPath, "qr", "", "write a PNG QR code of the join URL to this path (env: LIVEQUIZ_QR)")
	return cmd
}

func (f *hostFlags) apply(cfg *config.Config) {
	if f.port != "" {
		cfg.Server.Port = f.port
	}
	if f.bind != "" {
		cfg.Server.Bind = f.bind
	}
	if f.generator != "" {
		cfg.Generator.Kind = f.generator
	}
	if f.publicURL != "" {
		cfg.Server.PublicURL = f.publicURL
	}
	if cfg.Server.PublicURL == "" {
		cfg.Server.PublicURL = "http://localhost:" + cfg.Server.Port
	}
}

func runHost(ctx context.Context, opts *rootOptions, flags *hostFlags, in io.Reader, out io.Writer) (err error) {
	log := opts.log
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	flags.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []closer
	defer func() {
		var errs *multierror.Error
		for i := len(closers) - 1; i >= 0; i-- {
			if cerr := closers[i](); cerr != nil {
				errs = multierror.Append(errs, cerr)
			}
		}
		if errs != nil && err == nil {
			err = errs.ErrorOrNil()
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewPrometheusCollector(reg)

	rdb := newRedisClient(cfg)
	if rdb != nil {
		closers = append(closers, rdb.Close)
	}
	content, release, err := buildContent(ctx, cfg, rdb, log, collector)
	if err != nil {
		return err
	}
	closers = append(closers, release)

	registry := buildRegistry(cfg, rdb)
	code, err := app.ClaimSessionCode(ctx, registry, cfg.Server.PublicURL, 0)
	if err != nil {
		return err
	}
	closers = append(closers, func() error { return registry.Release(context.Background(), code) })

	host := transporthttp.NewHost(code, log)
	game := app.NewGame(host, content, gameConfig(cfg), log, collector)

	listener, err := net.Listen("tcp", net.JoinHostPort(cfg.Server.Bind, cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	server := &http.Server{
		Handler:           transporthttp.NewRouter(host, reg),
		ReadHeaderTimeout: 15 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server stopped")
			game.Close()
		}
	}()
	closers = append(closers, func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	peerURL, err := transporthttp.PeerURL(cfg.Server.PublicURL, code)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "session code: %s\njoin with: livequiz play --server %s --code %s\n", code, cfg.Server.PublicURL, code)
	if flags.qrPath != "" {
		if err := writeQR(flags.qrPath, peerURL); err != nil {
			return err
		}
		fmt.Fprintf(out, "join QR code written to %s\n", flags.qrPath)
	}
	log.Info().Str("code", code).Str("addr", listener.Addr().String()).Str("generator", cfg.Generator.Kind).Msg("hosting")

	console := newHostConsole(game, out)
	renderer := &hostRenderer{out: out, code: code, leaderboardSize: cfg.Game.LeaderboardSize}
	go func() {
		updates, cancel := game.Subscribe()
		defer cancel()
		for s := range updates {
			renderer.render(s)
		}
	}()
	go console.run(ctx, stdinLines(in))

	if err := game.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func writeQR(path, content string) error {
	png, err := transporthttp.QRCode(content)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, png, 0o644)
}

// hostConsole turns typed commands into game commands.
type hostConsole struct {
	game *app.Game
	out  io.Writer
	req  app.GenerateRequest
}

func newHostConsole(game *app.Game, out io.Writer) *hostConsole {
	return &hostConsole{game: game, out: out, req: app.GenerateRequest{Count: 5}}
}

func (c *hostConsole) run(ctx context.Context, lines <-chan string) {
	fmt.Fprintln(c.out, "type 'help' for commands")
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.game.Done():
			return
		case line, ok := <-lines:
			if !ok {
				c.game.Close()
				return
			}
			quit, err := c.exec(ctx, line)
			if err != nil {
				fmt.Fprintln(c.out, "error:", err)
			}
			if quit {
				c.game.Close()
				return
			}
		}
	}
}

const hostHelp = `commands:
  topic <text>      set the quiz topic
  count <1-20>      set how many questions to generate
  context <file>    generate from a .txt file (topic defaults to the file name)
  generate          generate questions with the current settings
  start             start the game
  leaderboard       score the question and show standings
  next              next question (ends the game after the last one)
  finish            end the game after the last question
  reset             back to the lobby, keeping players and questions
  status            print the current state
  quit              close the session`

func (c *hostConsole) exec(ctx context.Context, line string) (bool, error) {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)
	switch strings.ToLower(cmd) {
	case "":
		return false, nil
	case "help", "?":
		fmt.Fprintln(c.out, hostHelp)
	case "topic":
		c.req.Topic = arg
		fmt.Fprintf(c.out, "topic: %q\n", arg)
	case "count":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return false, fmt.Errorf("count must be a number")
		}
		c.req.Count = n
		fmt.Fprintf(c.out, "count: %d\n", c.req.Normalize().Count)
	case "context":
		text, topic, err := readContextFile(arg)
		if err != nil {
			return false, err
		}
		c.req.Context = text
		if strings.TrimSpace(c.req.Topic) == "" {
			c.req.Topic = topic
		}
		fmt.Fprintf(c.out, "context loaded (%d bytes), topic %q\n", len(text), c.req.Topic)
	case "generate":
		if arg != "" {
			c.req.Topic = arg
		}
		fmt.Fprintln(c.out, "generating...")
		qs, err := c.game.Generate(ctx, c.req)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(c.out, "%d questions on %q\n", len(qs), c.req.Normalize().Topic)
	case "start":
		return false, c.game.Start(ctx)
	case "leaderboard", "lb":
		return false, c.game.ShowLeaderboard(ctx)
	case "next":
		return false, c.game.Next(ctx)
	case "finish":
		return false, c.game.Finish(ctx)
	case "reset":
		return false, c.game.Reset(ctx)
	case "status":
		s := c.game.Snapshot()
		fmt.Fprintf(c.out, "status: %s, question %d/%d, players %d\n",
			s.Status, s.CurrentQuestionIndex+1, len(s.Questions), len(s.Players))
		if s.Status == domain.StatusLeaderboard || s.Status == domain.StatusFinished {
			writeLeaderboard(c.out, s, 0)
		}
	case "quit", "exit":
		return true, nil
	default:
		return false, fmt.Errorf("unknown command %q, type 'help'", cmd)
	}
	return false, nil
}

// readContextFile loads a plain text file used as generation context. The topic is the file
// name without extension.
func readContextFile(path string) (string, string, error) {
	if path == "" {
		return "", "", fmt.Errorf("context needs a file path")
	}
	if !strings.EqualFold(filepath.Ext(path), ".txt") {
		return "", "", fmt.Errorf("context file must be a .txt file")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	topic := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return string(data), topic, nil
}
