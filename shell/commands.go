package shell

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

type command func(s *Shell, args []string) Result

var commands = map[string]command{
	"help":     (*Shell).help,
	"pwd":      (*Shell).pwd,
	"whoami":   (*Shell).whoami,
	"cd":       (*Shell).cd,
	"ls":       (*Shell).ls,
	"dir":      (*Shell).ls,
	"cat":      (*Shell).cat,
	"clear":    (*Shell).clear,
	"cls":      (*Shell).clear,
	"history":  (*Shell).showHistory,
	"exit":     (*Shell).exit,
	"quit":     (*Shell).exit,
	"echo":     (*Shell).echo,
	"date":     (*Shell).date,
	"time":     (*Shell).clock,
	"open":     (*Shell).open,
	"tree":     (*Shell).tree,
	"neofetch": (*Shell).neofetch,
	"env":      (*Shell).showEnv,
	"export":   (*Shell).export,
	"uname":    (*Shell).uname,
	"hostname": (*Shell).hostname,
	"uptime":   (*Shell).uptime,
	"man":      (*Shell).man,
	"touch":    readOnly("Usage: touch <filename>", `touch: cannot create "%s": Read-only file system`),
	"mkdir":    readOnly("Usage: mkdir <dirname>", `mkdir: cannot create directory "%s": Read-only file system`),
	"rm":       readOnly("Usage: rm <filename>", `rm: cannot remove "%s": Read-only file system`),
	"grep":     (*Shell).grep,
	"find":     (*Shell).find,
	"head":     (*Shell).head,
	"tail":     (*Shell).tail,
	"wc":       (*Shell).wc,
}

var (
	helpText     = mustText("help.txt")
	neofetchText = mustText("neofetch.txt")
)

const whoamiText = `╔═══════════════════════════════════════╗
║            USER INFORMATION           ║
╚═══════════════════════════════════════╝
  User:     sudarshan
  Role:     Portfolio Owner
  Status:   CS Student | Software Developer
  Location: Springfield, MO
  Shell:    /bin/myshell
`

var manuals = map[string]string{
	"ls":   "ls - list directory contents\nUsage: ls [directory]",
	"cd":   "cd - change directory\nUsage: cd <directory>\nExamples: cd Projects, cd .., cd ~",
	"cat":  "cat - concatenate and display files\nUsage: cat <filename>",
	"pwd":  "pwd - print working directory\nUsage: pwd",
	"help": "help - display available commands\nUsage: help",
	"open": "open - open file in GUI window\nUsage: open <filename>",
	"tree": "tree - display directory tree\nUsage: tree",
}

var rule = strings.Repeat("─", 40)

const tailLines = 10

func info(out string) Result    { return Result{Output: out, Type: TypeInfo} }
func success(out string) Result { return Result{Output: out, Type: TypeSuccess} }
func failure(format string, a ...any) Result {
	return Result{Output: fmt.Sprintf(format, a...), Type: TypeError}
}

func readOnly(usage, msg string) command {
	return func(_ *Shell, args []string) Result {
		if len(args) == 0 {
			return failure("%s", usage)
		}
		return failure(msg, args[0])
	}
}

func (s *Shell) help([]string) Result { return info(helpText) }

func (s *Shell) pwd([]string) Result { return success(s.dir()) }

func (s *Shell) whoami([]string) Result { return success(whoamiText) }

func (s *Shell) cd(args []string) Result {
	target := ""
	if len(args) > 0 {
		target = args[0]
	}

	node, stack, ok := s.lookup(target)
	if !ok || !node.IsDir() {
		return failure("cd: %s: No such directory", target)
	}
	s.cwd = node
	s.stack = stack
	return success("")
}

func (s *Shell) ls(args []string) Result {
	target := s.cwd
	if len(args) > 0 {
		node, _, ok := s.lookup(args[0])
		if !ok {
			return failure("ls: %s: No such file or directory", args[0])
		}
		if !node.IsDir() {
			return info(fmt.Sprintf("  %s %s", node.DisplayIcon(), node.Name))
		}
		target = node
	}

	if len(target.Children) == 0 {
		return info("Directory is empty")
	}

	children := append([]*Node(nil), target.Children...)
	sort.Slice(children, func(i, j int) bool { return children[i].Name < children[j].Name })

	var dirs, files []string
	for _, c := range children {
		if c.IsDir() {
			dirs = append(dirs, fmt.Sprintf("  %s %s/", c.DisplayIcon(), c.Name))
		} else {
			files = append(files, fmt.Sprintf("  %s %s", c.DisplayIcon(), c.Name))
		}
	}
	return info(strings.Join(append(dirs, files...), "\n"))
}

func (s *Shell) cat(args []string) Result {
	if len(args) == 0 {
		return failure("Usage: cat <filename>")
	}
	node, _, ok := s.lookup(args[0])
	switch {
	case !ok:
		return failure("cat: %s: No such file", args[0])
	case node.IsDir():
		return failure("cat: %s: Is a directory", args[0])
	}
	return success(node.Content)
}

func (s *Shell) clear([]string) Result { return Result{Type: TypeClear} }

func (s *Shell) showHistory([]string) Result {
	if len(s.history) == 0 {
		return info("No command history")
	}

	recent := s.history
	if len(recent) > 20 {
		recent = recent[:20]
	}

	lines := []string{"Command History:", rule}
	for i := len(recent) - 1; i >= 0; i-- {
		lines = append(lines, fmt.Sprintf("  %3d  %s", len(recent)-i, recent[i]))
	}
	return info(strings.Join(lines, "\n"))
}

func (s *Shell) exit([]string) Result { return Result{Output: "Goodbye! 👋", Type: TypeExit} }

func (s *Shell) echo(args []string) Result {
	text := strings.Join(args, " ")
	for _, key := range s.envKeys {
		text = strings.ReplaceAll(text, "$"+key, s.env[key])
	}
	return success(text)
}

func (s *Shell) date([]string) Result { return success(s.now().Format("Monday, January 02, 2006")) }

func (s *Shell) clock([]string) Result { return success(s.now().Format("15:04:05")) }

func (s *Shell) open(args []string) Result {
	if len(args) == 0 {
		return failure("Usage: open <filename>")
	}
	node, _, ok := s.lookup(args[0])
	if !ok {
		return failure("open: %s: No such file", args[0])
	}
	if node.Window == "" {
		return failure("Cannot open %s in GUI", node.Name)
	}
	return Result{Output: fmt.Sprintf("Opening %s...", node.Name), Type: TypeOpenWindow, Window: node.Window}
}

func (s *Shell) tree([]string) Result {
	lines := []string{"📁 Portfolio", "│"}
	var walk func(n *Node, prefix string)
	walk = func(n *Node, prefix string) {
		for i, c := range n.Children {
			last := i == len(n.Children)-1
			connector, extension := "├── ", "│   "
			if last {
				connector, extension = "└── ", "    "
			}
			lines = append(lines, prefix+connector+c.DisplayIcon()+" "+c.Name)
			if c.IsDir() {
				walk(c, prefix+extension)
			}
		}
	}
	walk(s.root, "")
	return info(strings.Join(lines, "\n"))
}

func (s *Shell) neofetch([]string) Result { return success(neofetchText) }

func (s *Shell) showEnv([]string) Result {
	lines := []string{"Environment Variables:", rule}
	for _, key := range s.envKeys {
		lines = append(lines, fmt.Sprintf("  %s=%s", key, s.env[key]))
	}
	return info(strings.Join(lines, "\n"))
}

func (s *Shell) export(args []string) Result {
	if len(args) == 0 {
		return failure("Usage: export VAR=value")
	}
	key, value, ok := strings.Cut(args[0], "=")
	if !ok || key == "" {
		return failure("Usage: export VAR=value")
	}
	s.setEnv(key, value)
	return success("")
}

func (s *Shell) uname(args []string) Result {
	for _, a := range args {
		if a == "-a" {
			return success("Windows95 Portfolio 1.0 sudarshan-pc x86_64 MyShell")
		}
	}
	return success("Windows95 Portfolio")
}

func (s *Shell) hostname([]string) Result { return success("sudarshan-portfolio") }

func (s *Shell) uptime([]string) Result {
	return success(" up since Jan 2023, 1 user, load average: 0.42, 0.37, 0.35")
}

func (s *Shell) man(args []string) Result {
	if len(args) == 0 {
		return failure("What manual page do you want?\nUsage: man <command>")
	}
	name := strings.ToLower(args[0])
	page, ok := manuals[name]
	if !ok {
		return failure("No manual entry for %s", name)
	}
	return info(fmt.Sprintf("MANUAL: %s\n%s\n%s", name, rule, page))
}

func (s *Shell) grep(args []string) Result {
	if len(args) < 2 {
		return failure("Usage: grep <pattern> <filename>")
	}
	pattern := strings.ToLower(args[0])
	node, ok := s.file(args[1])
	if !ok {
		return failure("grep: %s: No such file", args[1])
	}

	var matches []string
	for _, line := range strings.Split(node.Content, "\n") {
		if strings.Contains(strings.ToLower(line), pattern) {
			matches = append(matches, line)
		}
	}
	if len(matches) == 0 {
		return info(fmt.Sprintf("No matches found for %q", pattern))
	}
	return success(strings.Join(matches, "\n"))
}

func (s *Shell) find(args []string) Result {
	if len(args) == 0 {
		return failure("Usage: find <name>")
	}
	pattern := strings.ToLower(args[0])

	var results []string
	var search func(n *Node, path string)
	search = func(n *Node, path string) {
		for _, c := range n.Children {
			full := path + "/" + c.Name
			if strings.Contains(strings.ToLower(c.Name), pattern) {
				results = append(results, full)
			}
			if c.IsDir() {
				search(c, full)
			}
		}
	}
	search(s.root, ".")

	if len(results) == 0 {
		return info(fmt.Sprintf("No files matching %q found", pattern))
	}
	return success(strings.Join(results, "\n"))
}

func (s *Shell) head(args []string) Result {
	if len(args) == 0 {
		return failure("Usage: head <filename>")
	}
	node, ok := s.file(args[0])
	if !ok {
		return failure("head: %s: No such file", args[0])
	}
	lines := strings.Split(node.Content, "\n")
	if len(lines) > tailLines {
		lines = lines[:tailLines]
	}
	return success(strings.Join(lines, "\n"))
}

func (s *Shell) tail(args []string) Result {
	if len(args) == 0 {
		return failure("Usage: tail <filename>")
	}
	node, ok := s.file(args[0])
	if !ok {
		return failure("tail: %s: No such file", args[0])
	}
	lines := strings.Split(node.Content, "\n")
	if len(lines) > tailLines {
		lines = lines[len(lines)-tailLines:]
	}
	return success(strings.Join(lines, "\n"))
}

func (s *Shell) wc(args []string) Result {
	if len(args) == 0 {
		return failure("Usage: wc <filename>")
	}
	node, ok := s.file(args[0])
	if !ok {
		return failure("wc: %s: No such file", args[0])
	}
	content := node.Content
	return success(fmt.Sprintf("  %d lines, %d words, %d characters",
		len(strings.Split(content, "\n")), len(strings.Fields(content)), utf8.RuneCountInString(content)))
}
