package shell

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Node types.
const (
	TypeFile      = "file"
	TypeDirectory = "directory"
)

//go:embed fs.yaml
var fsYAML []byte

//go:embed text
var texts embed.FS

// Node is a file or directory in the virtual portfolio tree.
type Node struct {
	Name     string  `yaml:"name"`
	Type     string  `yaml:"type"`
	Icon     string  `yaml:"icon"`
	Window   string  `yaml:"window"`
	Content  string  `yaml:"content"`
	Children []*Node `yaml:"children"`
}

// IsDir reports whether n is a directory.
func (n *Node) IsDir() bool {
	return n.Type == TypeDirectory
}

// Child returns the first child whose name matches name case-insensitively.
func (n *Node) Child(name string) *Node {
	for _, c := range n.Children {
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

// DisplayIcon returns the node icon or the default for its type.
func (n *Node) DisplayIcon() string {
	if n.Icon != "" {
		return n.Icon
	}
	if n.IsDir() {
		return "📁"
	}
	return "📄"
}

// ParseFS decodes a YAML tree and checks its shape.
func ParseFS(data []byte) (*Node, error) {
	var root Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse filesystem: %w", err)
	}
	if !root.IsDir() {
		return nil, errors.New("filesystem root must be a directory")
	}
	if err := validate(&root, ""); err != nil {
		return nil, err
	}
	return &root, nil
}

// DefaultFS returns the embedded portfolio tree.
func DefaultFS() (*Node, error) {
	return ParseFS(fsYAML)
}

func validate(n *Node, path string) error {
	for _, c := range n.Children {
		p := path + "/" + c.Name
		switch {
		case c.Name == "" || strings.Contains(c.Name, "/"):
			return fmt.Errorf("invalid name %q under %q", c.Name, path)
		case c.Type != TypeFile && c.Type != TypeDirectory:
			return fmt.Errorf("%s: unknown type %q", p, c.Type)
		case c.Type == TypeFile && len(c.Children) > 0:
			return fmt.Errorf("%s: file has children", p)
		}
		if err := validate(c, p); err != nil {
			return err
		}
	}
	return nil
}

func mustText(name string) string {
	data, err := texts.ReadFile("text/" + name)
	if err != nil {
		panic(err)
	}
	return string(data)
}
