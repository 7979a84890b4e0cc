package script

// Speaker identifies one of the two parties in the conversation.
type Speaker string

const (
	SpeakerA Speaker = "A"
	SpeakerB Speaker = "B"
)

// Other returns the opposite party.
func (s Speaker) Other() Speaker {
	if s == SpeakerA {
		return SpeakerB
	}
	return SpeakerA
}

func (s Speaker) valid() bool { return s == SpeakerA || s == SpeakerB }

// Document is the authored form of a script as stored in YAML.
type Document struct {
	Title          string    `yaml:"title"`
	Cast           Cast      `yaml:"cast"`
	Chooser        Speaker   `yaml:"chooser" jsonschema:"enum=A,enum=B"`
	MainFlow       []int     `yaml:"main_flow"`
	Messages       []Message `yaml:"messages"`
	Branches       []Branch  `yaml:"branches,omitempty"`
	BranchMessages []Message `yaml:"branch_messages,omitempty"`
}

// Cast names the two speakers for renderers.
type Cast struct {
	A Role `yaml:"A"`
	B Role `yaml:"B"`
}

// Role is a display name plus a short descriptor.
type Role struct {
	Name string `yaml:"name"`
	Role string `yaml:"role,omitempty"`
}

// Message is a single conversation turn. A message with choices halts
// playback until the visitor picks one.
type Message struct {
	ID      int      `yaml:"id"`
	Speaker Speaker  `yaml:"speaker" jsonschema:"enum=A,enum=B"`
	Text    string   `yaml:"text"`
	Choices []Choice `yaml:"choices,omitempty"`
}

// Choice is an option offered to the visitor.
type Choice struct {
	Label  string `yaml:"label"`
	Target int    `yaml:"target"`
}

// Branch is a detour taken when a choice targets Trigger: the branch
// messages are inserted and playback rejoins the main flow at Rejoin.
type Branch struct {
	Trigger  int   `yaml:"trigger"`
	Messages []int `yaml:"messages"`
	Rejoin   int   `yaml:"rejoin"`
}

// Name returns the display name for a speaker.
func (c Cast) Name(s Speaker) string {
	if s == SpeakerA {
		return c.A.Name
	}
	return c.B.Name
}
