package exec

// config splits settings into global ones (set by Option) and local ones
// (set by the fluent methods, cleared after each Run).
type config struct {
	globalEnv         map[string]string
	globalDir         string
	globalInheritEnv  bool
	globalPassthrough bool

	localEnv         map[string]string
	localDir         string
	localInheritEnv  *bool
	localPassthrough *bool
}

func newConfig() *config {
	return &config{
		globalEnv: make(map[string]string),
		localEnv:  make(map[string]string),
	}
}

func (c *config) clone() *config {
	out := &config{
		globalEnv:         copyEnv(c.globalEnv),
		globalDir:         c.globalDir,
		globalInheritEnv:  c.globalInheritEnv,
		globalPassthrough: c.globalPassthrough,
		localEnv:          copyEnv(c.localEnv),
		localDir:          c.localDir,
	}
	if c.localInheritEnv != nil {
		v := *c.localInheritEnv
		out.localInheritEnv = &v
	}
	if c.localPassthrough != nil {
		v := *c.localPassthrough
		out.localPassthrough = &v
	}
	return out
}

// env merges global and local variables; local wins.
func (c *config) env() map[string]string {
	env := copyEnv(c.globalEnv)
	for k, v := range c.localEnv {
		env[k] = v
	}
	return env
}

func (c *config) dir() string {
	if c.localDir != "" {
		return c.localDir
	}
	return c.globalDir
}

func (c *config) inheritEnv() bool {
	if c.localInheritEnv != nil {
		return *c.localInheritEnv
	}
	return c.globalInheritEnv
}

func (c *config) passthrough() bool {
	if c.localPassthrough != nil {
		return *c.localPassthrough
	}
	return c.globalPassthrough
}

func (c *config) resetLocal() {
	c.localEnv = make(map[string]string)
	c.localDir = ""
	c.localInheritEnv = nil
	c.localPassthrough = nil
}

func copyEnv(env map[string]string) map[string]string {
	out := make(map[string]string, len(env))
	for k, v := range env {
		out[k] = v
	}
	return out
}
