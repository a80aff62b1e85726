package testhelpers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// StubBackendEnv, when set to "1", tells a test binary to act as a JSON-RPC
// backend: its TestMain runs RunStubBackend instead of the tests.
const StubBackendEnv = "REVBRIDGE_STUB_CHILD"

type stubRequest struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	ID     uint64          `json:"id"`
}

// RunStubBackend serves line-delimited JSON-RPC on stdin/stdout until EOF and
// returns the exit code. Behaviour is tuned by STUB_* environment variables.
func RunStubBackend() int {
	if os.Getenv("STUB_EXIT_IMMEDIATELY") != "" {
		return 2
	}
	failPings, _ := strconv.Atoi(os.Getenv("STUB_FAIL_PINGS"))
	silentPings, _ := strconv.Atoi(os.Getenv("STUB_SILENT_PINGS"))

	fmt.Fprintln(os.Stderr, "stub ready")

	var mu sync.Mutex
	out := bufio.NewWriter(os.Stdout)
	send := func(v any) {
		line, _ := json.Marshal(v)
		mu.Lock()
		defer mu.Unlock()
		_, _ = out.Write(append(line, '\n'))
		_ = out.Flush()
	}
	reply := func(id uint64, result any) {
		send(map[string]any{"jsonrpc": "2.0", "result": result, "id": id})
	}
	fail := func(id uint64, code int, msg string) {
		send(map[string]any{"jsonrpc": "2.0", "error": map[string]any{"code": code, "message": msg}, "id": id})
	}

	pings := 0
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var req stubRequest
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			send(map[string]any{"jsonrpc": "2.0", "error": map[string]any{"code": -32700, "message": "Parse error"}, "id": nil})
			continue
		}
		switch req.Method {
		case "ping":
			pings++
			switch {
			case pings <= silentPings:
			case pings <= silentPings+failPings:
				fail(req.ID, -32002, "Service not available")
			default:
				reply(req.ID, map[string]string{"status": "pong"})
			}
		case "echo":
			reply(req.ID, req.Params)
		case "sleep":
			var p struct {
				MS int `json:"ms"`
			}
			_ = json.Unmarshal(req.Params, &p)
			go func(id uint64, ms int) {
				time.Sleep(time.Duration(ms) * time.Millisecond)
				reply(id, map[string]int{"slept": ms})
			}(req.ID, p.MS)
		case "env":
			var p struct {
				Key string `json:"key"`
			}
			_ = json.Unmarshal(req.Params, &p)
			reply(req.ID, map[string]string{"value": os.Getenv(p.Key)})
		case "noise":
			mu.Lock()
			_, _ = out.WriteString("Loading review manager...\n")
			_ = out.Flush()
			mu.Unlock()
			fmt.Fprintln(os.Stderr, "noise on stderr")
			reply(req.ID, true)
		case "crash":
			return 3
		case "never":
		default:
			fail(req.ID, -32601, "Method not found")
		}
	}

	if os.Getenv("STUB_IGNORE_EOF") != "" {
		time.Sleep(time.Hour)
	}
	return 0
}
