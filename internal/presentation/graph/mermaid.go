package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/toolgate/pkg/orchestrator"
)

// GenerateMermaid produces a Mermaid flowchart of the gateway topology:
// the gateway node fanning out to every managed tool server.
// Semantic styling:
// - Gateway: ((Circle))
// - stdio servers: [[Subroutine]] with solid arrows
// - sse servers: [Rectangle] with dotted arrows
// Running servers are highlighted, stopped ones greyed out.
func GenerateMermaid(statuses map[string]orchestrator.ServerStatus) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	sb.WriteString("    toolgate((\"toolgate\"))\n")

	names := make([]string, 0, len(statuses))
	for name := range statuses {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		st := statuses[name]
		safeID := sanitizeMermaidID(name)

		opener, closer := "[", "]"
		arrow := "-.->"
		if st.Transport == orchestrator.TransportStdio {
			opener, closer = "[[", "]]"
			arrow = "-->"
		}

		label := name
		if st.PID != 0 {
			label = fmt.Sprintf("%s <br/> pid %d", name, st.PID)
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, label, closer))
		sb.WriteString(fmt.Sprintf("    toolgate %s %s\n", arrow, safeID))
	}

	sb.WriteString("\n    %% State Styles\n")
	// Force black text (color:#000) for high-contrast regardless of theme
	sb.WriteString("    classDef running fill:#e8f5e9,stroke:#2e7d32,stroke-width:2px,color:#000;\n")
	sb.WriteString("    classDef stopped fill:#eceff1,stroke:#90a4ae,stroke-width:1px,color:#000;\n")

	for _, name := range names {
		class := "stopped"
		if statuses[name].Running {
			class = "running"
		}
		sb.WriteString(fmt.Sprintf("    class %s %s;\n", sanitizeMermaidID(name), class))
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
