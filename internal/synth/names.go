package synth

import (
	"fmt"
	"strings"

	"github.com/kinmemodoki/handa/internal/model"
	handastrings "github.com/kinmemodoki/handa/internal/pkg/strings"
)

// goReservedKeywords cannot be used as generated identifiers.
var goReservedKeywords = map[string]bool{
	"break": true, "default": true, "func": true, "interface": true, "select": true,
	"case": true, "defer": true, "go": true, "map": true, "struct": true,
	"chan": true, "else": true, "goto": true, "package": true, "switch": true,
	"const": true, "fallthrough": true, "if": true, "range": true, "type": true,
	"continue": true, "for": true, "import": true, "return": true, "var": true,
}

// NamePool hands out collision-free identifiers within one generated file.
type NamePool struct {
	names map[string]int
}

func NewNamePool() *NamePool {
	return &NamePool{names: make(map[string]int)}
}

// Register reserves an existing name so generated identifiers never shadow
// it.
func (p *NamePool) Register(name string) {
	if name == "" || name == "_" {
		return
	}
	if count, ok := p.names[name]; !ok || count == 0 {
		p.names[name] = 1
	}
}

// Get returns base, or base with a numeric suffix when base is taken.
func (p *NamePool) Get(base string) string {
	if base == "" {
		base = "v"
	}
	if goReservedKeywords[base] {
		base += "Value"
	}

	count := p.names[base]
	p.names[base] = count + 1
	if count == 0 {
		return base
	}
	return fmt.Sprintf("%s%d", base, count-1)
}

// keyBaseName derives an identifier fragment from a key: the type's base
// name plus the qualifier, "primaryConn" for @primary *db.Conn.
func keyBaseName(key model.Key) string {
	canonical := key.Type.Canonical
	if i := strings.LastIndexAny(canonical, "./"); i >= 0 && !strings.ContainsAny(canonical[i+1:], "[]") {
		canonical = canonical[i+1:]
	}
	base := handastrings.ToLowerCamel(handastrings.Mangle(canonical))

	if key.Qualifier != nil {
		base = handastrings.ToLowerCamel(key.Qualifier.Name) + handastrings.ToUpperCamel(base)
	}
	return base
}
