package planner

// libraryPackages maps a UI library selection token to the npm packages it
// requires. Grounded on spec.md §4.1's example mapping (shadcn, antd,
// tailwind, …); extended with the obvious siblings of each named library.
var libraryPackages = map[string][]string{
	"shadcn":    {"@radix-ui/react-slot", "class-variance-authority", "tailwind-merge"},
	"antd":      {"antd", "@ant-design/icons"},
	"tailwind":  {"tailwindcss", "postcss", "autoprefixer"},
	"mui":       {"@mui/material", "@emotion/react", "@emotion/styled"},
	"chakra":    {"@chakra-ui/react", "@emotion/react", "@emotion/styled", "framer-motion"},
	"bootstrap": {"bootstrap", "react-bootstrap"},
}

// projectTypePackages maps a project type to its baseline dependency set.
var projectTypePackages = map[string][]string{
	"next-js":      {"react", "react-dom", "next"},
	"react-vite":   {"react", "react-dom", "vite", "@vitejs/plugin-react"},
	"react-native": {"react", "react-native"},
	"uniapp":       {"vue"},
}

// techStackPackages maps an explicit tech-stack token to its package.
var techStackPackages = map[string][]string{
	"typescript": {"typescript"},
	"redux":      {"@reduxjs/toolkit", "react-redux"},
	"zustand":    {"zustand"},
	"react-query": {"@tanstack/react-query"},
	"router":     {"react-router-dom"},
}

// BuildDependencyChecklist implements spec.md §4.1's dependency-checklist
// construction from (projectType, techStack, uiLibrarySelection). The
// result always includes at least one react entry, in deterministic
// insertion order with duplicates removed.
func BuildDependencyChecklist(projectType string, techStack []string, uiLibrarySelection string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(pkgs []string) {
		for _, p := range pkgs {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}

	if pkgs, ok := projectTypePackages[projectType]; ok {
		add(pkgs)
	}
	for _, tech := range techStack {
		if pkgs, ok := techStackPackages[tech]; ok {
			add(pkgs)
		}
	}
	if pkgs, ok := libraryPackages[uiLibrarySelection]; ok {
		add(pkgs)
	}

	if !seen["react"] {
		out = append([]string{"react"}, out...)
	}
	return out
}
