// Command curator is the Curation Core's thin command-line entry point,
// mirroring the teacher's cmd/akashi and cmd/kyoyu pattern: load .env, load
// config, wire one collaborator, dispatch, exit. It implements only the
// cortex-route-plan/cortex-run-pass subcommands spec §6 names; everything
// else (the HTTP API shell, full flag parsing) is explicitly out of scope.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	mcpclient "github.com/mark3labs/mcp-go/client"
	mcptransport "github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/curationlabs/core/internal/config"
	"github.com/curationlabs/core/internal/toolclient"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "curator:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: curator <cortex-route-plan|cortex-run-pass> [flags]")
	}
	subcommand, rest := args[0], args[1:]

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet(subcommand, flag.ContinueOnError)
	tasksJSON := fs.String("tasks-json", "", "path to a JSON file with the subcommand's input")
	contextJSON := fs.String("context-json", "", "path to a JSON file overriding the max-deep-fields bound")
	local := fs.Bool("local", false, "use a built-in deterministic cortex client instead of connecting to CORTEX_MCP_URL")
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if *tasksJSON == "" {
		return fmt.Errorf("--tasks-json is required")
	}

	maxDeepFields := cfg.CortexMaxDeepFieldsPerProduct
	if *contextJSON != "" {
		var ctxOverride struct {
			MaxDeepFieldsPerProduct int `json:"max_deep_fields_per_product"`
		}
		if err := readJSONFile(*contextJSON, &ctxOverride); err != nil {
			return fmt.Errorf("read context-json: %w", err)
		}
		if ctxOverride.MaxDeepFieldsPerProduct > 0 {
			maxDeepFields = ctxOverride.MaxDeepFieldsPerProduct
		}
	}
	if !cfg.CortexEnabled {
		return fmt.Errorf("CORTEX_ENABLED is false")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client, closeClient, err := newCortexClient(ctx, *local)
	if err != nil {
		return err
	}
	if closeClient != nil {
		defer closeClient()
	}

	switch subcommand {
	case "cortex-route-plan":
		return runRoutePlan(ctx, client, *tasksJSON, maxDeepFields)
	case "cortex-run-pass":
		return runRunPass(ctx, client, *tasksJSON)
	default:
		return fmt.Errorf("unknown subcommand %q", subcommand)
	}
}

func runRoutePlan(ctx context.Context, client toolclient.CortexClient, tasksPath string, maxDeepFields int) error {
	var tasks []toolclient.DeepTask
	if err := readJSONFile(tasksPath, &tasks); err != nil {
		return fmt.Errorf("read tasks-json: %w", err)
	}
	plan, err := client.RoutePlan(ctx, tasks, maxDeepFields)
	if err != nil {
		return fmt.Errorf("route plan: %w", err)
	}
	return writeJSON(os.Stdout, plan)
}

func runRunPass(ctx context.Context, client toolclient.CortexClient, tasksPath string) error {
	var plan toolclient.RoutePlan
	if err := readJSONFile(tasksPath, &plan); err != nil {
		return fmt.Errorf("read tasks-json: %w", err)
	}
	results, err := client.RunPass(ctx, plan)
	if err != nil {
		return fmt.Errorf("run pass: %w", err)
	}
	return writeJSON(os.Stdout, results)
}

// newCortexClient connects to CORTEX_MCP_URL unless --local selects the
// built-in deterministic stub (offline runs, CI, and the spec's own
// round-trip tests have no MCP server to connect to).
func newCortexClient(ctx context.Context, local bool) (toolclient.CortexClient, func(), error) {
	if local {
		return localCortexClient{}, nil, nil
	}

	url := os.Getenv("CORTEX_MCP_URL")
	if url == "" {
		return nil, nil, fmt.Errorf("CORTEX_MCP_URL is required unless --local is set")
	}
	conn, err := mcpclient.NewStreamableHttpClient(url, mcptransport.WithHTTPHeaders(map[string]string{}))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s: %w", url, err)
	}
	if _, err := conn.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ClientInfo: mcp.Implementation{Name: "curator", Version: "1.0"},
		},
	}); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("initialize mcp client: %w", err)
	}
	return toolclient.NewMCPClient(conn), func() { _ = conn.Close() }, nil
}

// localCortexClient is a deterministic, network-free CortexClient used for
// --local invocations: every candidate is routed and run with a fixed
// score, so the CLI's JSON shape can be exercised without a live MCP peer.
type localCortexClient struct{}

func (localCortexClient) RoutePlan(_ context.Context, candidates []toolclient.DeepTask, maxTasks int) (toolclient.RoutePlan, error) {
	if maxTasks > 0 && len(candidates) > maxTasks {
		candidates = candidates[:maxTasks]
	}
	return toolclient.RoutePlan{Tasks: candidates}, nil
}

func (localCortexClient) RunPass(_ context.Context, plan toolclient.RoutePlan) ([]toolclient.RunResult, error) {
	results := make([]toolclient.RunResult, 0, len(plan.Tasks))
	for _, t := range plan.Tasks {
		results = append(results, toolclient.RunResult{FieldKey: t.FieldKey, Value: "", Score: 0})
	}
	return results, nil
}

func readJSONFile(path string, out any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(out)
}

func writeJSON(w *os.File, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
