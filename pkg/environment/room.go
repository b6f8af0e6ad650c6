package environment

// room holds a single dirtiness level; 0 is clean.
type room struct {
	dirtiness int
}

func (r *room) isClean() bool {
	return r.dirtiness == 0
}

func (r *room) clean() int {
	cost := r.dirtiness
	r.dirtiness = 0
	return cost
}

func (r *room) makeDirty(level int) {
	r.dirtiness = level
}
