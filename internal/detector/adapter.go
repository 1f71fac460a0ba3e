package detector

import "strconv"

// Model runs one inference per frame and reports boxes in frame pixels.
type Model[F any] interface {
	Detect(frame F) ([]Box, error)
	Classes() ClassNameResolver
}

// Adapter applies a class allow-list on top of a Model.
type Adapter[F any] struct {
	model Model[F]
	allow []int
}

// NewAdapter resolves requested against the model's class table once.
func NewAdapter[F any](model Model[F], requested []string) *Adapter[F] {
	return &Adapter[F]{
		model: model,
		allow: Resolve(requested, model.Classes()),
	}
}

// Detect runs the model and drops boxes outside the allow-list.
func (a *Adapter[F]) Detect(frame F) ([]Box, error) {
	boxes, err := a.model.Detect(frame)
	if err != nil {
		return nil, err
	}
	return Filter(boxes, a.allow), nil
}

// AllowList is the resolved class id filter; nil means every class passes.
func (a *Adapter[F]) AllowList() []int {
	return a.allow
}

// Label names a class id for annotations, falling back to the number.
func (a *Adapter[F]) Label(id int) string {
	if r := a.model.Classes(); r != nil {
		if name, ok := r.ClassName(id); ok {
			return name
		}
	}
	return strconv.Itoa(id)
}
