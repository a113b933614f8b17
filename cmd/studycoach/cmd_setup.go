package main

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/felixgeelhaar/studycoach/internal/config"
	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "First-time setup: create the state directory, config and API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdInit(cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the current configuration (secrets are never printed)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadLocalConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			dir, _ := config.StudyCoachDir()
			printConfig(cmd.OutOrStdout(), cfg, dir)
			return nil
		},
	}
}

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, providers and the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdDoctor(cmd.OutOrStdout())
		},
	}
}

// cmdInit initializes studycoach for first-time use
func cmdInit(in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "Study Coach - First-Time Setup")
	fmt.Fprintln(out, "==============================")
	fmt.Fprintln(out)

	reader := bufio.NewReader(in)

	fmt.Fprint(out, "Creating ~/.studycoach directory structure... ")
	dir, err := config.EnsureStudyCoachDir()
	if err != nil {
		return fmt.Errorf("create directories: %w", err)
	}
	fmt.Fprintln(out, "✓")

	configPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Fprint(out, "Creating default configuration... ")
		if err := config.SaveLocalConfig(config.DefaultLocalConfig()); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		fmt.Fprintln(out, "✓")
	} else {
		fmt.Fprintln(out, "Configuration already exists ✓")
	}

	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	notesDir := cfg.NotesPath(dir)
	if err := os.MkdirAll(notesDir, 0755); err != nil {
		return fmt.Errorf("create notes dir: %w", err)
	}
	fmt.Fprintf(out, "Notes folder: %s ✓\n", notesDir)

	fmt.Fprintln(out)
	fmt.Fprintln(out, "LLM Provider Setup")
	fmt.Fprintln(out, "------------------")
	fmt.Fprintln(out, "Study Coach supports: OpenAI, Claude (Anthropic) and Ollama (local)")
	fmt.Fprintln(out)

	// secrets.yaml is rewritten whole, so carry the keys we already have
	keys := make(map[string]string)
	changed := false
	for _, name := range []string{"openai", "claude"} {
		p := cfg.LLM.Providers[name]
		if p != nil && p.APIKey != "" {
			keys[name] = p.APIKey
			fmt.Fprintf(out, "%s API key: already configured ✓\n", name)
			continue
		}
		fmt.Fprintf(out, "Enter %s API key (or press Enter to skip): ", name)
		key, _ := reader.ReadString('\n')
		if key = strings.TrimSpace(key); key != "" {
			keys[name] = key
			changed = true
		}
	}
	if changed {
		if err := config.SaveSecrets(keys); err != nil {
			fmt.Fprintf(out, "  ⚠ Failed to save: %v\n", err)
		} else {
			fmt.Fprintln(out, "  ✓ Saved")
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Setup Complete!")
	fmt.Fprintln(out, "===============")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintf(out, "  1. Put your .md or .txt notes in %s\n", notesDir)
	fmt.Fprintln(out, "  2. studycoach ingest              # Index the notes")
	fmt.Fprintln(out, "  3. studycoach quiz --topic <t>    # Take a quiz")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "For assistant integration configure MCP with the 'studycoach mcp' command.")
	return nil
}

func printConfig(w io.Writer, cfg *config.LocalConfig, dir string) {
	fmt.Fprintln(w, "Study Coach Configuration")

	fmt.Fprintln(w, "\nDaemon:")
	fmt.Fprintf(w, "  bind: %s:%d\n", cfg.Daemon.Bind, cfg.Daemon.Port)
	fmt.Fprintf(w, "  log_level: %s\n", cfg.Daemon.LogLevel)

	fmt.Fprintln(w, "\nLLM:")
	fmt.Fprintf(w, "  default_provider: %s\n", cfg.LLM.DefaultProvider)
	fmt.Fprintf(w, "  resilient: %t\n", cfg.LLM.Resilient)
	names := make([]string, 0, len(cfg.LLM.Providers))
	for name := range cfg.LLM.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p := cfg.LLM.Providers[name]
		keyStatus := "✗"
		if p.APIKey != "" || name == "ollama" {
			keyStatus = "✓"
		}
		fmt.Fprintf(w, "  %s: enabled=%t model=%s key=%s\n", name, p.Enabled, p.Model, keyStatus)
	}

	fmt.Fprintln(w, "\nStorage:")
	fmt.Fprintf(w, "  backend: %s\n", cfg.Storage.Backend)
	if cfg.Storage.Backend == "postgres" {
		fmt.Fprintf(w, "  document_id: %s\n", cfg.Storage.DocumentID)
	} else {
		fmt.Fprintf(w, "  progress_path: %s\n", cfg.ProgressPath(dir))
	}

	fmt.Fprintln(w, "\nNotes:")
	fmt.Fprintf(w, "  dir: %s\n", cfg.NotesPath(dir))
	fmt.Fprintf(w, "  index: %s\n", cfg.NotesIndexPath(dir))
	fmt.Fprintf(w, "  embedder: %s\n", cfg.Notes.Embedder)
	fmt.Fprintf(w, "  chunks: size=%d overlap=%d top_k=%d\n", cfg.Notes.ChunkSize, cfg.Notes.ChunkOverlap, cfg.Notes.TopK)

	fmt.Fprintln(w, "\nQuiz:")
	fmt.Fprintf(w, "  questions: %d\n", cfg.Quiz.Questions)
	fmt.Fprintf(w, "  avoid: %s\n", cfg.Quiz.Avoid)
	fmt.Fprintf(w, "  feedback: %s\n", cfg.Quiz.Feedback)
	fmt.Fprintf(w, "  show_missed: %t\n", cfg.Quiz.ShowMissed)

	fmt.Fprintln(w, "\nEvents:")
	fmt.Fprintf(w, "  enabled: %t\n", cfg.Events.Enabled)
	fmt.Fprintf(w, "  url: %s\n", redactURL(cfg.Events.URL))

	fmt.Fprintf(w, "\nConfig path: %s\n", filepath.Join(dir, "config.yaml"))
}

// redactURL hides the password of a broker URL
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "(invalid)"
	}
	return u.Redacted()
}

// cmdDoctor checks the local setup
func cmdDoctor(out io.Writer) error {
	fmt.Fprintln(out, "Checking study coach setup...")
	allGood := true

	fmt.Fprint(out, "Directory: ")
	dir, err := config.StudyCoachDir()
	if err != nil {
		fmt.Fprintf(out, "✗ %v\n", err)
		allGood = false
	} else if _, err := os.Stat(dir); os.IsNotExist(err) {
		fmt.Fprintln(out, "✗ not created (run 'studycoach init')")
		allGood = false
	} else {
		fmt.Fprintf(out, "✓ %s\n", dir)
	}

	fmt.Fprint(out, "Config:    ")
	cfg, err := config.LoadLocalConfig()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(out, "✗ %v\n", err)
		return nil
	}
	fmt.Fprintln(out, "✓ loaded")

	fmt.Fprintln(out, "\nLLM Providers:")
	ready := 0
	for _, name := range []string{"openai", "claude", "ollama"} {
		p := cfg.LLM.Providers[name]
		if p == nil || !p.Enabled {
			continue
		}
		fmt.Fprintf(out, "  %s: ", name)
		switch {
		case name == "ollama":
			if err := checkOllama(p.URL); err != nil {
				fmt.Fprintf(out, "✗ %v\n", err)
			} else {
				fmt.Fprintf(out, "✓ available (model: %s)\n", p.Model)
				ready++
			}
		case p.APIKey != "":
			fmt.Fprintf(out, "✓ configured (model: %s)\n", p.Model)
			ready++
		default:
			fmt.Fprintln(out, "✗ no API key (run 'studycoach init')")
		}
	}
	if ready == 0 {
		allGood = false
	}

	fmt.Fprint(out, "\nDaemon:    ")
	if isRunning(daemonAddr()) {
		fmt.Fprintln(out, "✓ running")
	} else {
		fmt.Fprintln(out, "- not running (optional, 'studycoach start')")
	}

	fmt.Fprintln(out)
	if allGood {
		fmt.Fprintln(out, "All checks passed! ✓")
	} else {
		fmt.Fprintln(out, "Some checks failed. Please fix the issues above.")
	}
	return nil
}

func checkOllama(baseURL string) error {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(baseURL + "/api/tags")
	if err != nil {
		return fmt.Errorf("not reachable at %s", baseURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return nil
}
