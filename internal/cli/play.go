package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"livequiz/internal/app"
	"livequiz/internal/domain"
	"livequiz/internal/transport"
	transporthttp "livequiz/internal/transport/http"
)

type playFlags struct {
	server string
	code   string
	name   string
}

// NewPlayCmd builds the CLI subcommand that joins a session as a player.
func NewPlayCmd(opts *rootOptions) *cobra.Command {
	flags := &playFlags{}
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Join a quiz session as a player",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd.Context(), opts, flags, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&flags.server, "server", "s", "", "host address; resolved from the code registry when empty (env: LIVEQUIZ_SERVER)")
	fs.StringVar(&flags.code, "code", "", "session code shown by the host (env: LIVEQUIZ_CODE)")
	fs.StringVarP(&flags.name, "name", "n", "", "display name (env: LIVEQUIZ_NAME)")
	return cmd
}

func runPlay(ctx context.Context, opts *rootOptions, flags *playFlags, in io.Reader, out io.Writer) error {
	log := opts.log
	code := transport.NormalizeCode(flags.code)
	name := strings.TrimSpace(flags.name)
	if code == "" || name == "" {
		return fmt.Errorf("--code and --name are required")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := flags.server
	if server == "" {
		cfg, err := loadConfig(opts.configPath)
		if err != nil {
			return err
		}
		rdb := newRedisClient(cfg)
		if rdb == nil {
			return fmt.Errorf("--server is required when no redis registry is configured")
		}
		server, err = buildRegistry(cfg, rdb).Resolve(ctx, code)
		rdb.Close()
		if err != nil {
			return err
		}
	}

	client, err := transporthttp.Dial(ctx, server, code, log)
	if err != nil {
		return err
	}
	player := app.NewPlayer(client, code, name, log)
	defer player.Close()
	if err := player.Join(); err != nil {
		return err
	}
	fmt.Fprintf(out, "joined %s as %s\n", code, name)

	renderer := &playerRenderer{out: out}
	go func() {
		for range player.Updates() {
			renderer.render(player.View())
		}
	}()

	lines := stdinLines(in)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-player.Disconnected():
			fmt.Fprintln(out, "disconnected from host")
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := handlePlayerInput(player, line, out); quit {
				return nil
			}
		}
	}
}

func handlePlayerInput(player *app.Player, line string, out io.Writer) bool {
	line = strings.TrimSpace(line)
	switch strings.ToLower(line) {
	case "":
		return false
	case "quit", "exit", "leave":
		return true
	}

	view := player.View()
	if strings.EqualFold(line, "score") {
		fmt.Fprintf(out, "score: %d\n", view.MyScore())
		return false
	}
	s, ok := view.State()
	if !ok {
		fmt.Fprintln(out, "not connected yet")
		return false
	}
	q, ok := s.CurrentQuestion()
	if !ok {
		fmt.Fprintln(out, "no question right now")
		return false
	}
	option, ok := optionFor(q, line)
	if !ok {
		fmt.Fprintln(out, "pick A, B, C or D")
		return false
	}
	if err := player.Answer(option); err != nil {
		if errors.Is(err, domain.ErrAnswerRejected) {
			fmt.Fprintln(out, "answer not accepted right now")
			return false
		}
		fmt.Fprintln(out, "error:", err)
		return false
	}
	fmt.Fprintf(out, "answered %s\n", option)
	return false
}
