package pipeline

import (
	"calc-pipeline/internal/model"

	"calc-pipeline/pkg/logger"
)

// binding is a stage with its optional capabilities resolved once, at
// classification time, instead of probed on every call
type binding struct {
	stage     Stage
	exec      TransformStage
	conform   IndexConformer
	registrar Registrar
	inputs    InputProvider
	args      ArgProvider
	validate  bool
	abort     *bool            // set when the stage declares its own abort policy
	merge     model.MergeMethod // data sources only
}

func bind(s Stage) *binding {
	b := &binding{stage: s}
	b.exec, _ = s.(TransformStage)
	b.conform, _ = s.(IndexConformer)
	b.registrar, _ = s.(Registrar)
	b.inputs, _ = s.(InputProvider)
	b.args, _ = s.(ArgProvider)
	if sv, ok := s.(SchemaValidated); ok {
		b.validate = sv.SchemaValidated()
	}
	if ao, ok := s.(AbortOverride); ok {
		v := ao.AbortOnFail()
		b.abort = &v
	}
	if ds, ok := s.(DataSourceStage); ok {
		b.merge = ds.Merge()
	}
	return b
}

// Classified is the outcome of partitioning a stage list by role.
// Relative order inside every bucket follows the original stage list
type Classified struct {
	Preload   []PreloadStage
	Primary   []*binding // replace merge data sources
	Secondary []*binding // outer merge data sources
	Lookups   []*binding
	Ordinary  []*binding
}

// Classify partitions the stage list into preload, primary source,
// secondary source, lookup and ordinary buckets. Lookups are recorded
// on the session as they are found. A stage that is neither a preload
// nor a transform cannot run and fails classification
func Classify(stages []Stage, sess Session, log *logger.Logger) (*Classified, error) {
	c := &Classified{}
	for _, s := range stages {
		switch st := s.(type) {
		case PreloadStage:
			c.Preload = append(c.Preload, st)
		case DataSourceStage:
			b := bind(s)
			if st.Merge() == model.MergeReplace {
				c.Primary = append(c.Primary, b)
			} else {
				c.Secondary = append(c.Secondary, b)
			}
		case LookupStage:
			if st.LookupKind() == model.LookupCalendar {
				sess.SetCalendar(st)
			} else {
				sess.AddLookupStage(st)
			}
			c.Lookups = append(c.Lookups, bind(s))
		case TransformStage:
			c.Ordinary = append(c.Ordinary, bind(s))
		default:
			return nil, configErrorf("stage %s is neither a preload nor a transform stage", s.Name())
		}
	}
	if len(c.Primary) > 1 {
		log.Warn("multiple replace data sources configured; each replaces the output of the one before it",
			"count", len(c.Primary))
		sess.TraceAppend("pipeline", "Multiple replace data sources are configured; each replaces the output of the one before it. ", nil)
	}
	return c, nil
}
