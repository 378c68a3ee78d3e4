// Package port exposes a timer store over a small RESP-compatible command
// set, so the store can be poked at interactively with any Redis client while
// benchmarking or debugging.
//
// Grounded on nobletooth-kiwi's pkg/port/redis.go: the same redcon handler
// wiring (handler/accept/close callbacks, ListenAndServe in a goroutine,
// context-driven shutdown), repurposed from Redis string commands (SET/GET/DEL)
// to timer-store commands (ADD/DEL/TTL/POP/SIZE).
package port

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/riftwood/timerstore/pkg/metrics"
	"github.com/riftwood/timerstore/pkg/store"
	"github.com/tidwall/redcon"
)

// command is a parsed RESP command: name plus the remaining arguments.
type command struct {
	name string
	args [][]byte
}

// handler dispatches commands against a store.TimerStore. redcon serves each
// connection on its own goroutine, so mu serializes every command against the store.
type handler struct {
	mu     sync.Mutex
	store  store.TimerStore
	engine string
}

func newHandler(s store.TimerStore, engine string) (*handler, error) {
	if s == nil {
		return nil, errors.New("port: expected a non-nil store")
	}
	return &handler{store: s, engine: engine}, nil
}

func (h *handler) handle(conn redcon.Conn, cmd command) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch cmd.name {
	case "PING":
		conn.WriteString("PONG")
	case "QUIT":
		conn.WriteString("OK")
		_ = conn.Close()
	case "ADD":
		h.handleAdd(conn, cmd.args)
	case "DEL":
		h.handleDel(conn, cmd.args)
	case "TTL":
		h.handleTTL(conn, cmd.args)
	case "POP":
		h.handlePop(conn, cmd.args)
	case "SIZE":
		conn.WriteInt(h.store.Size())
	default:
		conn.WriteError(fmt.Sprintf("ERR unknown command '%s'", cmd.name))
	}
}

func (h *handler) handleAdd(conn redcon.Conn, args [][]byte) {
	if len(args) != 2 {
		conn.WriteError("ERR wrong number of arguments for 'ADD' command")
		return
	}
	key := string(args[0])
	ttlMs, err := strconv.ParseInt(string(args[1]), 10, 64)
	if err != nil {
		conn.WriteError("ERR invalid ttl_ms: " + err.Error())
		return
	}
	if err := h.store.Add(key, time.Duration(ttlMs)*time.Millisecond); err != nil {
		conn.WriteError("ERR " + err.Error())
		return
	}
	metrics.RecordAdd(h.engine)
	metrics.SetLiveEntries(h.engine, h.store.Size())
	conn.WriteString("OK")
}

func (h *handler) handleDel(conn redcon.Conn, args [][]byte) {
	if len(args) != 1 {
		conn.WriteError("ERR wrong number of arguments for 'DEL' command")
		return
	}
	key := string(args[0])
	// The Lawn's Remove reports success for an absent key, so check presence first to
	// reply 0 for a key that was not there with either engine.
	if _, ok := h.store.ExpiresAt(key); !ok {
		conn.WriteInt(0)
		return
	}
	if err := h.store.Remove(key); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			conn.WriteInt(0)
			return
		}
		conn.WriteError("ERR " + err.Error())
		return
	}
	metrics.RecordRemove(h.engine)
	metrics.SetLiveEntries(h.engine, h.store.Size())
	conn.WriteInt(1)
}

func (h *handler) handleTTL(conn redcon.Conn, args [][]byte) {
	if len(args) != 1 {
		conn.WriteError("ERR wrong number of arguments for 'TTL' command")
		return
	}
	exp, ok := h.store.ExpiresAt(string(args[0]))
	if !ok {
		conn.WriteInt(-1)
		return
	}
	conn.WriteInt(int(exp.UnixMilli()))
}

func (h *handler) handlePop(conn redcon.Conn, args [][]byte) {
	if len(args) != 1 {
		conn.WriteError("ERR wrong number of arguments for 'POP' command")
		return
	}
	nowMs, err := strconv.ParseInt(string(args[0]), 10, 64)
	if err != nil {
		conn.WriteError("ERR invalid now_ms: " + err.Error())
		return
	}
	expired := h.store.PopExpired(time.UnixMilli(nowMs))
	conn.WriteArray(len(expired))
	for _, e := range expired {
		conn.WriteBulkString(e.Key)
	}
}

// RunDebugServer starts a RESP server at address fronting s, blocking until
// ctx is cancelled or the server stops unexpectedly. engine labels the
// metrics this server's handlers feed (SetLiveEntries/RecordAdd/RecordRemove).
func RunDebugServer(ctx context.Context, s store.TimerStore, address string, engine string) error {
	h, err := newHandler(s, engine)
	if err != nil {
		return fmt.Errorf("port: failed to create handler: %w", err)
	}

	server := redcon.NewServerNetwork("tcp", address,
		func(conn redcon.Conn, raw redcon.Command) {
			if len(raw.Args) == 0 {
				conn.WriteError("ERR empty command")
				return
			}
			h.handle(conn, command{
				name: strings.ToUpper(string(raw.Args[0])),
				args: raw.Args[1:],
			})
		},
		func(conn redcon.Conn) bool {
			slog.Info("port: accepting connection", "addr", conn.NetConn().RemoteAddr().String())
			return true
		},
		func(conn redcon.Conn, err error) {},
	)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("port: starting debug server", "address", address)
		if err := server.ListenAndServe(); err != nil {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		slog.Info("port: context cancelled, shutting down", "err", ctx.Err())
		return server.Close()
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("port: debug server stopped unexpectedly: %w", err)
		}
		return nil
	}
}
