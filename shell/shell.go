// Package shell implements the portfolio terminal: a read-only virtual
// filesystem and a small set of Unix-flavoured commands over it.
package shell

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Home is the directory every session starts in. It is the filesystem root.
const Home = "/home/sudarshan/Portfolio"

const maxHistory = 50

// Result types understood by the terminal window.
const (
	TypeInfo       = "info"
	TypeSuccess    = "success"
	TypeError      = "error"
	TypeClear      = "clear"
	TypeExit       = "exit"
	TypeOpenWindow = "open_window"
)

// Result is the outcome of one command.
type Result struct {
	Output string `json:"output"`
	Type   string `json:"type"`
	Prompt string `json:"prompt"`
	Window string `json:"window,omitempty"`
}

// Shell is one terminal session. It is safe for concurrent use.
type Shell struct {
	mu sync.Mutex

	root    *Node
	cwd     *Node
	stack   []string
	history []string // newest first

	envKeys []string
	env     map[string]string

	now func() time.Time
}

// New creates a session rooted at root.
func New(root *Node) *Shell {
	s := &Shell{
		root: root,
		cwd:  root,
		env:  make(map[string]string),
		now:  time.Now,
	}
	s.setEnv("USER", "sudarshan")
	s.setEnv("HOME", Home)
	s.setEnv("SHELL", "/bin/myshell")
	s.setEnv("PWD", Home)
	return s
}

// Prompt returns the current prompt.
func (s *Shell) Prompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prompt()
}

// Execute runs one command line.
func (s *Shell) Execute(line string) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	line = strings.TrimSpace(line)
	if line == "" {
		return Result{Type: TypeInfo, Prompt: s.prompt()}
	}

	s.history = append([]string{line}, s.history...)
	if len(s.history) > maxHistory {
		s.history = s.history[:maxHistory]
	}

	fields := strings.Fields(line)
	name := strings.ToLower(fields[0])

	var res Result
	if cmd, ok := commands[name]; ok {
		res = cmd(s, fields[1:])
	} else {
		res = Result{
			Output: fmt.Sprintf("bash: %s: command not found\nType 'help' for available commands.", name),
			Type:   TypeError,
		}
	}
	res.Prompt = s.prompt()
	return res
}

// Complete returns the names in the current directory starting with partial, ignoring case.
func (s *Shell) Complete(partial string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	partial = strings.ToLower(partial)
	completions := []string{}
	for _, c := range s.cwd.Children {
		if strings.HasPrefix(strings.ToLower(c.Name), partial) {
			completions = append(completions, c.Name)
		}
	}
	return completions
}

func (s *Shell) prompt() string {
	return s.dir() + "$ "
}

func (s *Shell) dir() string {
	if len(s.stack) == 0 {
		return Home
	}
	return Home + "/" + strings.Join(s.stack, "/")
}

func (s *Shell) setEnv(key, value string) {
	if _, ok := s.env[key]; !ok {
		s.envKeys = append(s.envKeys, key)
	}
	s.env[key] = value
}

// lookup resolves path relative to the working directory. Only the last
// element may be a file. The returned stack is the directory path of the
// node when it is a directory.
func (s *Shell) lookup(path string) (*Node, []string, bool) {
	switch path {
	case "", "~", "/", Home:
		return s.root, nil, true
	}

	var stack []string
	switch {
	case strings.HasPrefix(path, Home+"/"):
		path = strings.TrimPrefix(path, Home+"/")
	case strings.HasPrefix(path, "~/"):
		path = strings.TrimPrefix(path, "~/")
	case strings.HasPrefix(path, "/"):
		return nil, nil, false
	default:
		stack = append(stack, s.stack...)
	}

	node := s.nodeAt(stack)
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
				node = s.nodeAt(stack)
			}
			continue
		}

		if !node.IsDir() {
			return nil, nil, false
		}
		child := node.Child(part)
		if child == nil {
			return nil, nil, false
		}
		if !child.IsDir() && i != len(parts)-1 {
			return nil, nil, false
		}
		node = child
		if child.IsDir() {
			stack = append(stack, child.Name)
		}
	}
	return node, stack, true
}

func (s *Shell) nodeAt(stack []string) *Node {
	node := s.root
	for _, name := range stack {
		node = node.Child(name)
	}
	return node
}

// file resolves path to a regular file.
func (s *Shell) file(path string) (*Node, bool) {
	node, _, ok := s.lookup(path)
	if !ok || node.IsDir() {
		return nil, false
	}
	return node, true
}
