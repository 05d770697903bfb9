package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"livequiz/internal/config"
	"livequiz/internal/domain"
	"livequiz/internal/infra/postgres"
	"livequiz/internal/infra/sqlite"
)

// NewBankCmd groups question bank maintenance commands.
func NewBankCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bank",
		Short: "Manage the question bank",
	}
	cmd.AddCommand(newBankImportCmd(opts))
	return cmd
}

type bankImporter interface {
	Import(ctx context.Context, topic string, questions []domain.Question) (int, error)
}

func newBankImportCmd(opts *rootOptions) *cobra.Command {
	var file, target, topic string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import questions from a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			fileTopic, questions, err := parseBankFile(data)
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			if topic == "" {
				topic = fileTopic
			}

			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			var importer bankImporter
			switch strings.ToLower(target) {
			case config.GeneratorSQLite:
				bank, err := sqlite.Open(cfg.SQLite.Path, opts.log)
				if err != nil {
					return err
				}
				defer bank.Close()
				importer = bank
			case config.GeneratorPostgres:
				if err := runMigrationsWithConfig(ctx, cfg, opts.log); err != nil {
					return err
				}
				db := postgres.OpenBun(cfg.Postgres.URL)
				defer db.Close()
				importer = postgres.NewBankWriter(db)
			default:
				return fmt.Errorf("unknown target %q, want sqlite or postgres", target)
			}

			n, err := importer.Import(ctx, topic, questions)
			if err != nil {
				return err
			}
			opts.log.Info().Int("questions", n).Str("topic", topic).Str("target", target).Msg("questions imported")
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&file, "file", "f", "", "YAML file with a topic and questions")
	fs.StringVarP(&target, "target", "t", config.GeneratorSQLite, "bank to import into: sqlite or postgres (env: LIVEQUIZ_TARGET)")
	fs.StringVar(&topic, "topic", "", "override the topic from the file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

type bankFile struct {
	Topic     string `yaml:"topic"`
	Questions []struct {
		Question      string   `yaml:"question"`
		Options       []string `yaml:"options"`
		CorrectAnswer string   `yaml:"correctAnswer"`
	} `yaml:"questions"`
}

func parseBankFile(data []byte) (string, []domain.Question, error) {
	var f bankFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return "", nil, err
	}
	if strings.TrimSpace(f.Topic) == "" {
		return "", nil, fmt.Errorf("topic is required")
	}
	questions := make([]domain.Question, 0, len(f.Questions))
	for i, q := range f.Questions {
		question := domain.Question{Text: q.Question, Options: q.Options, CorrectAnswer: q.CorrectAnswer}
		if err := question.Validate(); err != nil {
			return "", nil, fmt.Errorf("question %d: %w", i+1, err)
		}
		questions = append(questions, question)
	}
	if len(questions) == 0 {
		return "", nil, fmt.Errorf("no questions in file")
	}
	return strings.TrimSpace(f.Topic), questions, nil
}
