package w1

// Sink receives produced temperature values. The kit never knows what is
// behind it: a bound variable, a user callback, an exporter.
type Sink interface {
	Set(Temperature)
}

// CallbackSink adapts a plain function to the Sink interface.
type CallbackSink func(Temperature)

func (cs CallbackSink) Set(value Temperature) {
	cs(value)
}

// VariableSink writes every value into a destination owned by the
// caller.
type VariableSink struct {
	dest *Temperature
}

func NewVariableSink(dest *Temperature) *VariableSink {
	return &VariableSink{dest: dest}
}

func (vs *VariableSink) Set(value Temperature) {
	*vs.dest = value
}

// lastGoodSink drops error values so the wrapped sink keeps its last
// good reading across failed poll cycles.
type lastGoodSink struct {
	next Sink
}

func (lg lastGoodSink) Set(value Temperature) {
	if value.Valid() {
		lg.next.Set(value)
	}
}

// multiSink fans one value out to several sinks.
type multiSink []Sink

func (ms multiSink) Set(value Temperature) {
	for _, sink := range ms {
		sink.Set(value)
	}
}
