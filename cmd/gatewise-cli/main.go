package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/gatewise/gatewise/internal/checklist"
	"github.com/gatewise/gatewise/internal/config"
	"github.com/gatewise/gatewise/internal/rolereq"
)

const defaultAddr = "http://localhost:8080"

func main() {
	exitFn(run(os.Args, os.Stdout, os.Stderr))
}

var exitFn = os.Exit

func run(args []string, stdout io.Writer, stderr io.Writer) int {
	if len(args) < 2 {
		usage(stderr)
		return 2
	}

	switch args[1] {
	case "verify":
		return handleVerify(args[2:], stdout, stderr)
	case "diff":
		return handleDiff(args[2:], stdout, stderr)
	case "lint":
		return handleLint(args[2:], stdout, stderr)
	case "config":
		return handleConfig(args[2:], stdout, stderr)
	default:
		usage(stderr)
		return 2
	}
}

func handleVerify(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", envOrDefault("GATEWISE_ADDR", defaultAddr), "Gatewise API address")
	jsonOut := fs.Bool("json", false, "print raw JSON response")
	token := fs.String("token", os.Getenv("GATEWISE_AUTH_TOKEN"), "bearer token")
	if err := fs.Parse(args); err != nil {
		fs.Usage()
		return 2
	}

	if fs.NArg() != 2 {
		fmt.Fprintln(stderr, "verify requires <work_item_id> <version>")
		fs.Usage()
		return 2
	}
	workItemID, version := fs.Arg(0), fs.Arg(1)

	url := fmt.Sprintf("%s/v1/work-items/%s/versions/%s/verify", *addr, workItemID, version)
	respBody, status, err := httpGet(http.DefaultClient, url, *token)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}

	if *jsonOut {
		_, _ = stdout.Write(respBody)
		return 0
	}

	if status != http.StatusOK {
		fmt.Fprintf(stderr, "verify failed: %s\n", strings.TrimSpace(string(respBody)))
		return 1
	}

	var payload struct {
		WorkItemID string `json:"work_item_id"`
		Version    int    `json:"version"`
		Valid      bool   `json:"valid"`
		Error      string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(respBody, &payload); err != nil {
		fmt.Fprintln(stderr, "invalid response:", err)
		return 1
	}

	if payload.Valid {
		fmt.Fprintf(stdout, "valid=true work_item_id=%s version=%d\n", payload.WorkItemID, payload.Version)
		return 0
	}
	fmt.Fprintf(stdout, "valid=false work_item_id=%s version=%d error=%s\n", payload.WorkItemID, payload.Version, payload.Error)
	return 1
}

func handleDiff(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("diff", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", envOrDefault("GATEWISE_ADDR", defaultAddr), "Gatewise API address")
	jsonOut := fs.Bool("json", false, "print raw JSON response")
	token := fs.String("token", os.Getenv("GATEWISE_AUTH_TOKEN"), "bearer token")
	if err := fs.Parse(args); err != nil {
		fs.Usage()
		return 2
	}

	if fs.NArg() != 3 {
		fmt.Fprintln(stderr, "diff requires <work_item_id> <from_version> <to_version>")
		fs.Usage()
		return 2
	}
	workItemID, from, to := fs.Arg(0), fs.Arg(1), fs.Arg(2)

	url := fmt.Sprintf("%s/v1/work-items/%s/versions/%s/diff/%s", *addr, workItemID, from, to)
	respBody, status, err := httpGet(http.DefaultClient, url, *token)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	if status != http.StatusOK {
		fmt.Fprintf(stderr, "diff failed: %s\n", strings.TrimSpace(string(respBody)))
		return 1
	}

	if *jsonOut {
		_, _ = stdout.Write(respBody)
		return 0
	}

	var payload struct {
		FieldChanges []struct {
			Field string `json:"field"`
			Kind  string `json:"kind"`
		} `json:"field_changes"`
		DocumentChanges []struct {
			Name string `json:"name"`
			Kind string `json:"kind"`
		} `json:"document_changes"`
	}
	if err := json.Unmarshal(respBody, &payload); err != nil {
		fmt.Fprintln(stderr, "invalid response:", err)
		return 1
	}

	for _, change := range payload.FieldChanges {
		fmt.Fprintf(stdout, "field %s %s\n", change.Kind, change.Field)
	}
	for _, change := range payload.DocumentChanges {
		fmt.Fprintf(stdout, "document %s %s\n", change.Kind, change.Name)
	}
	if len(payload.FieldChanges) == 0 && len(payload.DocumentChanges) == 0 {
		fmt.Fprintln(stdout, "no changes")
	}
	return 0
}

func handleLint(args []string, stdout io.Writer, stderr io.Writer) int {
	if len(args) < 1 {
		usage(stderr)
		return 2
	}
	switch args[0] {
	case "typologies":
		if len(args) != 2 {
			fmt.Fprintln(stderr, "lint typologies requires <path>")
			return 2
		}
		table, err := checklist.Load(args[1])
		if err != nil {
			fmt.Fprintln(stderr, err.Error())
			return 1
		}
		fmt.Fprintf(stdout, "ok typologies=%d hash=%s\n", len(table.Typologies), table.Hash)
		return 0
	case "roles":
		if len(args) != 2 {
			fmt.Fprintln(stderr, "lint roles requires <path>")
			return 2
		}
		table, err := rolereq.Load(args[1])
		if err != nil {
			fmt.Fprintln(stderr, err.Error())
			return 1
		}
		fmt.Fprintf(stdout, "ok roles=%d hash=%s\n", len(table.Roles), table.Hash)
		return 0
	default:
		usage(stderr)
		return 2
	}
}

func handleConfig(args []string, stdout io.Writer, stderr io.Writer) int {
	if len(args) != 2 || args[0] != "check" {
		usage(stderr)
		return 2
	}
	cfg, err := config.Load(args[1])
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	fmt.Fprintf(stdout, "ok listen_addr=%s db_driver=%s\n", cfg.ListenAddr, cfg.DB.Driver)
	return 0
}

func httpGet(client *http.Client, url string, token string) ([]byte, int, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func envOrDefault(key string, fallback string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return fallback
}

func usage(w io.Writer) {
	fmt.Fprint(w, `Gatewise CLI

Usage:
  gatewise verify <work_item_id> <version> [--addr URL] [--json] [--token TOKEN]
  gatewise diff <work_item_id> <from_version> <to_version> [--addr URL] [--json] [--token TOKEN]
  gatewise lint typologies <path>
  gatewise lint roles <path>
  gatewise config check <path>
`)
}
