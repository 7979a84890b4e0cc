package script

// Graph is a validated, read-only script. Nodes are message ids; each main
// flow message has a default edge to its successor and optional choice edges.
// Branch messages live in their own id-space and are reachable only through
// a detour.
type Graph struct {
	title    string
	cast     Cast
	chooser  Speaker
	flow     []int
	index    map[int]int
	messages map[int]*Message
	branch   map[int]*Message
	detours  map[int]*Detour
}

// Detour is a resolved branch: the messages to insert and the main flow
// index to resume at.
type Detour struct {
	Trigger     int
	Messages    []*Message
	Rejoin      int
	RejoinIndex int
}

func (g *Graph) Title() string    { return g.title }
func (g *Graph) Cast() Cast       { return g.cast }
func (g *Graph) Chooser() Speaker { return g.chooser }

// Len is the number of main flow messages.
func (g *Graph) Len() int { return len(g.flow) }

// At returns the main flow message at position i.
func (g *Graph) At(i int) *Message {
	if i < 0 || i >= len(g.flow) {
		return nil
	}
	return g.messages[g.flow[i]]
}

// MainFlow returns a copy of the ordered main flow ids.
func (g *Graph) MainFlow() []int {
	out := make([]int, len(g.flow))
	copy(out, g.flow)
	return out
}

// Message looks up a main id-space message.
func (g *Graph) Message(id int) (*Message, bool) {
	m, ok := g.messages[id]
	return m, ok
}

// BranchMessage looks up a branch id-space message.
func (g *Graph) BranchMessage(id int) (*Message, bool) {
	m, ok := g.branch[id]
	return m, ok
}

// IndexOf returns the main flow position of id.
func (g *Graph) IndexOf(id int) (int, bool) {
	i, ok := g.index[id]
	return i, ok
}

// Next follows the default edge from a main flow message. The second result
// is false at the end of the flow or for ids outside it.
func (g *Graph) Next(id int) (int, bool) {
	i, ok := g.index[id]
	if !ok || i+1 >= len(g.flow) {
		return 0, false
	}
	return g.flow[i+1], true
}

// Detour returns the branch triggered by a choice target, if any.
func (g *Graph) Detour(target int) (*Detour, bool) {
	d, ok := g.detours[target]
	return d, ok
}
