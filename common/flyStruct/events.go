package flyStruct

// Emitter receives decoded events. Implementations own any state they keep.
type Emitter interface {
	OnUserPosition(e PositionEvent)
	OnMonsterPosition(e PositionEvent)
	OnPlayerPosition(e PositionEvent)
	OnChatMessage(e ChatEvent)
}

// DiagnosticSink receives decode anomalies for operator review.
type DiagnosticSink interface {
	Record(p *Packet, d Diagnostic)
}

// Publish hands a decoded packet's events and diagnostics to the listeners. Either may be nil.
func Publish(p *Packet, e Emitter, ds DiagnosticSink) {
	if ds != nil {
		for _, d := range p.Diagnostics {
			ds.Record(p, d)
		}
	}

	if e == nil {
		return
	}

	for _, pe := range p.Positions {
		switch pe.Kind {
		case EntityUser:
			e.OnUserPosition(pe)
		case EntityMonster:
			e.OnMonsterPosition(pe)
		case EntityPlayer:
			e.OnPlayerPosition(pe)
		}
	}

	for _, ce := range p.Chats {
		e.OnChatMessage(ce)
	}
}

// Emitters fans events out to several emitters in order.
type Emitters []Emitter

func (m Emitters) OnUserPosition(e PositionEvent) {
	for _, em := range m {
		em.OnUserPosition(e)
	}
}

func (m Emitters) OnMonsterPosition(e PositionEvent) {
	for _, em := range m {
		em.OnMonsterPosition(e)
	}
}

func (m Emitters) OnPlayerPosition(e PositionEvent) {
	for _, em := range m {
		em.OnPlayerPosition(e)
	}
}

func (m Emitters) OnChatMessage(e ChatEvent) {
	for _, em := range m {
		em.OnChatMessage(e)
	}
}

// DiagnosticSinks fans diagnostics out to several sinks in order.
type DiagnosticSinks []DiagnosticSink

func (m DiagnosticSinks) Record(p *Packet, d Diagnostic) {
	for _, s := range m {
		s.Record(p, d)
	}
}
