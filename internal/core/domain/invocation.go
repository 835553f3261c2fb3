package domain

// Invocation is a resolved command ready to hand to a runner.
type Invocation struct {
	// Label identifies the job in logs.
	Label      string
	Executable string
	Args       []string
	WorkingDir string
}
