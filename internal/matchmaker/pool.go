package matchmaker

import "slices"

// Pool is the FIFO queue of connections waiting for an anonymous match.
type Pool struct {
	queue []string
}

func (p *Pool) Push(connID string) bool {
	if p.Contains(connID) {
		return false
	}
	p.queue = append(p.queue, connID)
	return true
}

// Pop removes and returns the longest-waiting connection.
func (p *Pool) Pop() (string, bool) {
	if len(p.queue) == 0 {
		return "", false
	}
	head := p.queue[0]
	p.queue = slices.Delete(p.queue, 0, 1)
	return head, true
}

// Remove drops connID wherever it sits in the queue.
func (p *Pool) Remove(connID string) bool {
	i := slices.Index(p.queue, connID)
	if i < 0 {
		return false
	}
	p.queue = slices.Delete(p.queue, i, i+1)
	return true
}

func (p *Pool) Contains(connID string) bool { return slices.Contains(p.queue, connID) }
func (p *Pool) Len() int                    { return len(p.queue) }
