package domain

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/zerr"
)

// fingerprintLen is the length of a hex-encoded 64-bit digest.
const fingerprintLen = 16

// Fingerprint is the content-derived identity of a Job.
type Fingerprint string

// ParseFingerprint validates s as a fingerprint.
func ParseFingerprint(s string) (Fingerprint, error) {
	if len(s) != fingerprintLen {
		return "", zerr.With(zerr.Wrap(ErrInvalidFingerprint, "expected 16 hex digits"), "fingerprint", s)
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", zerr.With(zerr.Wrap(ErrInvalidFingerprint, "expected 16 hex digits"), "fingerprint", s)
	}
	return Fingerprint(s), nil
}

func (f Fingerprint) String() string { return string(f) }

// Shard returns the two-character prefix used to fan out on-disk layouts.
func (f Fingerprint) Shard() string {
	if len(f) < 2 {
		return string(f)
	}
	return string(f[:2])
}

// FileDigests maps a project-relative input file path to its content hash.
type FileDigests map[string]string

// Fingerprinter computes job fingerprints and remembers them for the jobs it
// has seen. Jobs must be fingerprinted after their inputs.
type Fingerprinter struct {
	files FileDigests
	memo  map[*Job]Fingerprint
}

// NewFingerprinter returns a Fingerprinter reading input file hashes from files.
func NewFingerprinter(files FileDigests) *Fingerprinter {
	return &Fingerprinter{
		files: files,
		memo:  make(map[*Job]Fingerprint),
	}
}

// Lookup returns the memoized fingerprint of job.
func (f *Fingerprinter) Lookup(job *Job) (Fingerprint, bool) {
	fp, ok := f.memo[job]
	return fp, ok
}

// Fingerprint digests the tool identity, the argument list, the input
// fingerprints in declaration order, the input file contents and the declared
// outputs of job.
func (f *Fingerprinter) Fingerprint(job *Job) (Fingerprint, error) {
	if fp, ok := f.memo[job]; ok {
		return fp, nil
	}

	h := xxhash.New()

	if err := f.writeTool(h, job); err != nil {
		return "", err
	}

	writeField(h, strconv.Itoa(len(job.command.args)))
	for _, arg := range job.command.args {
		writeField(h, arg)
	}
	writeSection(h)

	for _, in := range job.inputs {
		fp, ok := f.memo[in]
		if !ok {
			return "", zerr.With(zerr.Wrap(ErrInputNotFingerprinted, "fingerprint inputs first"), "input", in.String())
		}
		writeField(h, fp.String())
	}
	writeSection(h)

	for _, p := range job.inputFiles {
		digest, ok := f.files[p]
		if !ok {
			return "", zerr.With(zerr.Wrap(ErrMissingFileDigest, "input file was not hashed"), "path", p)
		}
		writeField(h, p)
		writeField(h, digest)
	}
	writeSection(h)

	for _, p := range job.outputs {
		writeField(h, p)
	}

	fp := Fingerprint(fmt.Sprintf("%016x", h.Sum64()))
	f.memo[job] = fp
	return fp, nil
}

func (f *Fingerprinter) writeTool(h *xxhash.Digest, job *Job) error {
	tool := job.command.tool
	switch tool.kind {
	case ToolSystem:
		writeField(h, "system")
		writeField(h, tool.name)
	case ToolBuilt:
		fp, ok := f.memo[tool.job]
		if !ok {
			return &UnresolvedToolError{Tool: tool.output, Job: job.String()}
		}
		writeField(h, "built")
		writeField(h, fp.String())
		writeField(h, tool.output)
	default:
		return ErrMissingTool
	}
	writeSection(h)
	return nil
}

func writeField(h *xxhash.Digest, s string) {
	_, _ = h.WriteString(s)
	_, _ = h.Write([]byte{0})
}

func writeSection(h *xxhash.Digest) {
	_, _ = h.Write([]byte{0})
}
