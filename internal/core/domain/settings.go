package domain

import (
	"runtime"

	"go.trai.ch/zerr"
)

// CancelMode controls what happens to running jobs when the build is cancelled.
type CancelMode string

const (
	// CancelKill terminates running commands.
	CancelKill CancelMode = "kill"
	// CancelFinish lets running commands complete.
	CancelFinish CancelMode = "finish"
)

// ParseCancelMode validates s, defaulting to CancelKill when empty.
func ParseCancelMode(s string) (CancelMode, error) {
	switch CancelMode(s) {
	case "", CancelKill:
		return CancelKill, nil
	case CancelFinish:
		return CancelFinish, nil
	default:
		return "", zerr.With(zerr.New("invalid on_cancel value, expected 'kill' or 'finish'"), "value", s)
	}
}

// RemoteCache configures the optional S3-compatible cache tier.
type RemoteCache struct {
	Endpoint  string
	Bucket    string
	Region    string
	Prefix    string
	UseSSL    bool
	AccessKey string
	SecretKey string
}

// Enabled reports whether a remote tier was configured.
func (r *RemoteCache) Enabled() bool {
	return r != nil && r.Endpoint != "" && r.Bucket != ""
}

// Settings are the tunables of one build invocation.
type Settings struct {
	RootDir       string
	WorkerThreads int
	KeepGoing     bool
	OnCancel      CancelMode
	Remote        *RemoteCache
}

// Workers returns the configured pool size, or the number of CPUs when unset.
func (s Settings) Workers() int {
	if s.WorkerThreads > 0 {
		return s.WorkerThreads
	}
	return runtime.NumCPU()
}

// Project is a loaded build definition.
type Project struct {
	// Root is the directory holding the build definition. Input files are relative to it.
	Root     string
	Rbt      *Rbt
	Settings Settings
}
