package workq

// Once constructs a Once-typed job on wq with the given body, activates
// it immediately (inline if the aid stack permits), and returns the job
// handle — the one-shot helper named in spec.md §6.
func (wq *WorkQ) Once(body Body) (*Job, error) {
	j, err := NewJob(wq, Once, body)
	if err != nil {
		return nil, err
	}
	j.Activate(ActImmed)
	return j, nil
}

// OnceCo constructs a Once-typed coroutine job on wq (see NewCoJob),
// activates it immediately, and returns the job handle — the
// coroutine-flavored one-shot helper named in spec.md §6
// ("once([callable,...])").
func (wq *WorkQ) OnceCo(countFn CountFunc, body CoBody) (*CoJob, error) {
	c, err := NewCoJob(wq, Once, countFn, body)
	if err != nil {
		return nil, err
	}
	c.Activate(ActImmed)
	return c, nil
}
