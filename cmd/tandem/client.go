package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
)

// Client holds HTTP client state for CLI commands.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// get performs a GET and decodes JSON into v.
func (c *Client) get(path string, v any) error {
	req, err := http.NewRequest(http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// send performs a request with a JSON body and decodes the response into v
// (may be nil).
func (c *Client) send(method, path string, body io.Reader, v any) error {
	req, err := http.NewRequest(method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if v != nil && resp.ContentLength != 0 {
		return json.NewDecoder(resp.Body).Decode(v)
	}
	return nil
}

// --- status ---

func (c *Client) cmdStatus(_ []string) error {
	var result map[string]string
	if err := c.get("/api/status", &result); err != nil {
		return err
	}
	fmt.Printf("status:  %s\n", result["status"])
	fmt.Printf("version: %s\n", result["version"])
	fmt.Printf("uptime:  %s\n", result["uptime"])
	return nil
}

// --- tasks ---

func (c *Client) cmdTasks(args []string) error {
	fs := flag.NewFlagSet("tasks", flag.ContinueOnError)
	status := fs.String("status", "", "filter by status")
	assignee := fs.String("assignee", "", "filter by assignee display name")
	due := fs.String("due", "", "due window: today or week")
	query := fs.String("q", "", "free-text search")
	if err := fs.Parse(args); err != nil {
		return err
	}

	q := url.Values{}
	for key, val := range map[string]string{
		"status": *status, "assignee": *assignee, "due": *due, "q": *query,
	} {
		if val != "" {
			q.Set(key, val)
		}
	}
	path := "/api/tasks"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var tasks []map[string]any
	if err := c.get(path, &tasks); err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Println("no tasks")
		return nil
	}
	fmt.Printf("%-36s %-30s %-12s %-10s\n", "ID", "NAME", "STATUS", "DUE")
	fmt.Println(strings.Repeat("-", 92))
	for _, t := range tasks {
		due := strVal(t["due_date"])
		if len(due) > 10 {
			due = due[:10]
		}
		fmt.Printf("%-36s %-30s %-12s %-10s\n",
			strVal(t["id"]),
			truncate(strVal(t["name"]), 29),
			strVal(t["status"]),
			due,
		)
	}
	return nil
}

// --- task subcommands ---

func (c *Client) cmdTask(args []string) error {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: tandem task <create|done|rm> ...")
		os.Exit(1)
	}
	sub := args[0]
	switch sub {
	case "create":
		if len(args) < 2 {
			return fmt.Errorf("usage: tandem task create <name>")
		}
		name := strings.Join(args[1:], " ")
		body := fmt.Sprintf(`{"name":%q,"status":"pending","priority":"medium"}`, name)
		var result map[string]any
		if err := c.send(http.MethodPost, "/api/tasks", strings.NewReader(body), &result); err != nil {
			return err
		}
		fmt.Printf("created task %s\n", strVal(result["id"]))
	case "done":
		if len(args) < 2 {
			return fmt.Errorf("usage: tandem task done <id>")
		}
		body := `{"status":"complete"}`
		if err := c.send(http.MethodPatch, "/api/tasks/"+args[1], strings.NewReader(body), nil); err != nil {
			return err
		}
		fmt.Printf("task %s completed\n", args[1])
	case "rm":
		if len(args) < 2 {
			return fmt.Errorf("usage: tandem task rm <id>")
		}
		if err := c.send(http.MethodDelete, "/api/tasks/"+args[1], nil, nil); err != nil {
			return err
		}
		fmt.Printf("task %s deleted\n", args[1])
	default:
		return fmt.Errorf("unknown task subcommand: %s", sub)
	}
	return nil
}

// --- agenda ---

func (c *Client) cmdAgenda(args []string) error {
	path := "/api/agenda"
	if len(args) > 0 {
		path += "/" + args[0]
	}
	var items []map[string]any
	if err := c.get(path, &items); err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("nothing scheduled")
		return nil
	}
	fmt.Printf("%-16s %-6s %-34s %s\n", "START", "TYPE", "TITLE", "SOURCE")
	fmt.Println(strings.Repeat("-", 70))
	for _, it := range items {
		start := strVal(it["start"])
		if len(start) > 16 {
			start = start[:16]
		}
		fmt.Printf("%-16s %-6s %-34s %s\n",
			start,
			strVal(it["type"]),
			truncate(strVal(it["title"]), 33),
			strVal(it["source"]),
		)
	}
	return nil
}

// --- notifications ---

func (c *Client) cmdNotifications(_ []string) error {
	var notifications []map[string]any
	if err := c.get("/api/notifications?active=true", &notifications); err != nil {
		return err
	}
	if len(notifications) == 0 {
		fmt.Println("no active notifications")
		return nil
	}
	for _, n := range notifications {
		fmt.Printf("[%s] %s\n", strVal(n["priority"]), strVal(n["title"]))
	}
	return nil
}

// --- helpers ---

func strVal(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
