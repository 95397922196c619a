// Command linker resolves mentions read as JSON lines on stdin, writing one
// JSON result per line to stdout. All logging goes to stderr so stdout stays
// machine-readable.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/kbatlas/linker"
	"github.com/kbatlas/linker/internal/config"
)

var (
	configPath = flag.String("config", "", "Path to config file (optional, uses env vars by default)")
	dataPath   = flag.String("data", "", "Data directory (overrides config)")
	batchMode  = flag.Bool("batch", false, "Read all mentions before resolving, enabling recurring-unresolved registration")
)

// result is the per-mention output frame.
type result struct {
	Text       string                   `json:"mention"`
	Type       string                   `json:"type"`
	Resolved   string                   `json:"resolved"`
	Candidates []linker.ScoredCandidate `json:"candidates,omitempty"`
	Error      string                   `json:"error,omitempty"`
}

func main() {
	log.SetOutput(os.Stderr)
	log.SetPrefix("linker: ")
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *dataPath != "" {
		cfg.Storage.DataPath = *dataPath
	}

	r, err := linker.Open(cfg)
	if err != nil {
		log.Fatalf("Failed to open resolver: %v", err)
	}
	defer r.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	out := json.NewEncoder(os.Stdout)
	if *batchMode {
		runBatch(ctx, r, out)
		return
	}
	runStream(ctx, r, out)
}

// runStream resolves each mention as it arrives.
func runStream(ctx context.Context, r *linker.Resolver, out *json.Encoder) {
	sc := bufio.NewScanner(os.Stdin)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		m, ok := decodeMention(sc.Bytes())
		if !ok {
			continue
		}
		outcome, err := r.Resolve(ctx, m)
		emit(out, m, outcome, err)
		if ctx.Err() != nil {
			return
		}
	}
	if err := sc.Err(); err != nil {
		log.Fatalf("Reading stdin: %v", err)
	}
}

// runBatch collects all mentions first so the batch-level registration policy
// can see the whole input.
func runBatch(ctx context.Context, r *linker.Resolver, out *json.Encoder) {
	var mentions []linker.Mention
	sc := bufio.NewScanner(os.Stdin)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if m, ok := decodeMention(sc.Bytes()); ok {
			mentions = append(mentions, m)
		}
	}
	if err := sc.Err(); err != nil {
		log.Fatalf("Reading stdin: %v", err)
	}

	res, err := r.ProcessBatch(ctx, mentions)
	if err != nil {
		log.Fatalf("Batch failed: %v", err)
	}
	for _, mr := range res.Results {
		emit(out, mr.Mention, mr.Outcome, mr.Err)
	}
	if len(res.Registered) > 0 {
		log.Printf("Registered %d recurring unresolved mentions", len(res.Registered))
	}
}

func decodeMention(line []byte) (linker.Mention, bool) {
	var m linker.Mention
	if len(line) == 0 {
		return m, false
	}
	if err := json.Unmarshal(line, &m); err != nil {
		log.Printf("Skipping malformed line: %v", err)
		return m, false
	}
	return m, true
}

func emit(out *json.Encoder, m linker.Mention, outcome linker.Outcome, err error) {
	res := result{Text: m.Text, Type: m.Type, Resolved: linker.Unresolved}
	if err != nil {
		res.Error = err.Error()
	} else if outcome.Resolved {
		res.Resolved = outcome.Best().ID
		res.Candidates = outcome.Candidates
	}
	if err := out.Encode(res); err != nil {
		log.Fatalf("Writing result: %v", err)
	}
}

func loadConfig() (*config.Config, error) {
	if *configPath != "" {
		return config.LoadConfigFile(*configPath)
	}
	return config.LoadConfig()
}
