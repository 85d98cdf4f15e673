package scm

import (
	"sort"

	"github.com/leodido/go-conventionalcommits"
	"github.com/leodido/go-conventionalcommits/parser"
)

const otherGroup = "other"

// ParsedCommit is a commit subject split into its Conventional Commits parts.
type ParsedCommit struct {
	SHA         string  `json:"sha"`
	Type        string  `json:"type"`
	Scope       *string `json:"scope,omitempty"`
	Description string  `json:"description"`
	Breaking    bool    `json:"breaking"`
}

type CommitGroup struct {
	Type    string         `json:"type"`
	Commits []ParsedCommit `json:"commits"`
}

// ParseConventional parses the subject of message. Subjects that do not
// follow the convention land in the "other" type with the raw subject as
// description.
func ParseConventional(sha, message string) ParsedCommit {
	subject := firstLine(message)
	machine := parser.NewMachine(conventionalcommits.WithTypes(conventionalcommits.TypesConventional))

	msg, err := machine.Parse([]byte(subject))
	if err != nil || msg == nil || !msg.Ok() {
		return ParsedCommit{SHA: sha, Type: otherGroup, Description: subject}
	}
	cc, ok := msg.(*conventionalcommits.ConventionalCommit)
	if !ok {
		return ParsedCommit{SHA: sha, Type: otherGroup, Description: subject}
	}
	return ParsedCommit{
		SHA:         sha,
		Type:        cc.Type,
		Scope:       cc.Scope,
		Description: cc.Description,
		Breaking:    cc.IsBreakingChange(),
	}
}

// GroupByType groups commits by conventional type. Groups are ordered by
// size, largest first, with "other" always last. Commit order inside a
// group is preserved.
func GroupByType(commits []Commit) []CommitGroup {
	index := map[string]int{}
	var groups []CommitGroup
	for _, c := range commits {
		parsed := ParseConventional(c.SHA, c.Message)
		i, ok := index[parsed.Type]
		if !ok {
			i = len(groups)
			index[parsed.Type] = i
			groups = append(groups, CommitGroup{Type: parsed.Type})
		}
		groups[i].Commits = append(groups[i].Commits, parsed)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if (groups[i].Type == otherGroup) != (groups[j].Type == otherGroup) {
			return groups[j].Type == otherGroup
		}
		return len(groups[i].Commits) > len(groups[j].Commits)
	})
	return groups
}
