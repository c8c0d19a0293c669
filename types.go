package zento

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Logger is the logging contract used across the package. It matches the
// named loggers handed out by go-logger so those can be passed in directly.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// AuthSession is the narrow view of an authenticated session the resolver
// and the merge engine depend on.
type AuthSession interface {
	IdentityID() string
	Email() string
}

// Access tells the resolver whether the caller is about to write
type Access int

const (
	// ReadAccess never provisions a guest identity
	ReadAccess Access = iota
	// WriteAccess provisions a guest identity when no owner can be found
	WriteAccess
)

func (a Access) String() string {
	if a == WriteAccess {
		return "write"
	}
	return "read"
}

// DefaultGuestTTL is the lifetime of an anonymous session and its cookie
const DefaultGuestTTL = 180 * 24 * time.Hour

type clock func() time.Time

func (c clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}

// sessionIdentity parses the identity id carried by an authenticated
// session. Sessions without a usable id count as unauthenticated.
func sessionIdentity(session AuthSession) (uuid.UUID, bool) {
	if session == nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(strings.TrimSpace(session.IdentityID()))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// StaticSession is an AuthSession built from plain values
type StaticSession struct {
	ID        string
	UserEmail string
}

func (s StaticSession) IdentityID() string { return s.ID }
func (s StaticSession) Email() string      { return s.UserEmail }

type defLogger struct{}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Println("[DBG] ZENTO " + line(msg, args...))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Println("[INF] ZENTO " + line(msg, args...))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Println("[WRN] ZENTO " + line(msg, args...))
}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Println("[ERR] ZENTO " + line(msg, args...))
}

func line(msg string, args ...any) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
			continue
		}
		fmt.Fprintf(&b, " %v", args[i])
	}
	return b.String()
}

// DefaultLogger returns the stdout logger used when none is configured
func DefaultLogger() Logger {
	return defLogger{}
}

func ensureLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
