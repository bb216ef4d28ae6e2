// Package skills implements progressive-disclosure skills: a SKILL.md
// front-matter file per skill directory, eagerly loaded for name and
// description so every skill's metadata can be summarized in the system
// prompt without paying for its full body, which loads on demand via the
// get_skill tool.
package skills

// Skill is one discovered skill.
type Skill struct {
	// Name is the unique skill identifier.
	Name string `yaml:"name"`

	// Description explains what the skill does and when an agent should
	// reach for it — this is what appears in the system prompt's
	// metadata block.
	Description string `yaml:"description"`

	// Content is the markdown body, loaded lazily by Manager.Load.
	Content string `yaml:"-"`

	// Path is the directory the skill was discovered in.
	Path string `yaml:"-"`
}
