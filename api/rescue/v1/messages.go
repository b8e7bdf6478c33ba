package rescuev1

// Field numbers follow declaration order, starting at 1.

// InsertRequest adds one candidate to a namespace's queue.
type InsertRequest struct {
	Namespace string
	Candidate string
}

// InsertResponse carries the script code (0 inserted, -1 already known).
type InsertResponse struct {
	Code   int32
	Result string
}

// PollRequest leases a candidate. Hint spreads concurrent workers over the
// pending set; workers send their id.
type PollRequest struct {
	Namespace string
	Hint      string
}

// PollResponse has Found=false when no work is available.
type PollResponse struct {
	Code      int32
	Found     bool
	Candidate string
}

// ReturnRequest reports a verdict.
type ReturnRequest struct {
	Namespace string
	Candidate string
	Succeeded bool
}

// ReturnResponse carries the script code (0 ok, -1 lease not found).
type ReturnResponse struct {
	Code   int32
	Result string
}

type SolvedRequest struct {
	Namespace string
}

type SolvedResponse struct {
	Solved bool
}

type WinnersRequest struct {
	Namespace string
}

type WinnersResponse struct {
	Candidates []string
}

type StatsRequest struct {
	Namespace string
}

type StatsResponse struct {
	Candidates int64
	Pending    int64
	Leased     int64
	Succeeded  int64
	Failed     int64
}

func (m *InsertRequest) appendWire(b []byte) []byte {
	b = appendString(b, 1, m.Namespace)
	return appendString(b, 2, m.Candidate)
}

func (m *InsertRequest) unmarshalWire(b []byte) error {
	*m = InsertRequest{}
	return consumeFields(b, func(f field) error {
		switch f.num {
		case 1:
			return f.readString(&m.Namespace)
		case 2:
			return f.readString(&m.Candidate)
		}
		return nil
	})
}

func (m *InsertResponse) appendWire(b []byte) []byte {
	b = appendInt(b, 1, int64(m.Code))
	return appendString(b, 2, m.Result)
}

func (m *InsertResponse) unmarshalWire(b []byte) error {
	*m = InsertResponse{}
	return consumeFields(b, func(f field) error {
		switch f.num {
		case 1:
			return f.readInt32(&m.Code)
		case 2:
			return f.readString(&m.Result)
		}
		return nil
	})
}

func (m *PollRequest) appendWire(b []byte) []byte {
	b = appendString(b, 1, m.Namespace)
	return appendString(b, 2, m.Hint)
}

func (m *PollRequest) unmarshalWire(b []byte) error {
	*m = PollRequest{}
	return consumeFields(b, func(f field) error {
		switch f.num {
		case 1:
			return f.readString(&m.Namespace)
		case 2:
			return f.readString(&m.Hint)
		}
		return nil
	})
}

func (m *PollResponse) appendWire(b []byte) []byte {
	b = appendInt(b, 1, int64(m.Code))
	b = appendBool(b, 2, m.Found)
	return appendString(b, 3, m.Candidate)
}

func (m *PollResponse) unmarshalWire(b []byte) error {
	*m = PollResponse{}
	return consumeFields(b, func(f field) error {
		switch f.num {
		case 1:
			return f.readInt32(&m.Code)
		case 2:
			return f.readBool(&m.Found)
		case 3:
			return f.readString(&m.Candidate)
		}
		return nil
	})
}

func (m *ReturnRequest) appendWire(b []byte) []byte {
	b = appendString(b, 1, m.Namespace)
	b = appendString(b, 2, m.Candidate)
	return appendBool(b, 3, m.Succeeded)
}

func (m *ReturnRequest) unmarshalWire(b []byte) error {
	*m = ReturnRequest{}
	return consumeFields(b, func(f field) error {
		switch f.num {
		case 1:
			return f.readString(&m.Namespace)
		case 2:
			return f.readString(&m.Candidate)
		case 3:
			return f.readBool(&m.Succeeded)
		}
		return nil
	})
}

func (m *ReturnResponse) appendWire(b []byte) []byte {
	b = appendInt(b, 1, int64(m.Code))
	return appendString(b, 2, m.Result)
}

func (m *ReturnResponse) unmarshalWire(b []byte) error {
	*m = ReturnResponse{}
	return consumeFields(b, func(f field) error {
		switch f.num {
		case 1:
			return f.readInt32(&m.Code)
		case 2:
			return f.readString(&m.Result)
		}
		return nil
	})
}

func (m *SolvedRequest) appendWire(b []byte) []byte { return appendString(b, 1, m.Namespace) }

func (m *SolvedRequest) unmarshalWire(b []byte) error {
	*m = SolvedRequest{}
	return consumeFields(b, func(f field) error {
		if f.num == 1 {
			return f.readString(&m.Namespace)
		}
		return nil
	})
}

func (m *SolvedResponse) appendWire(b []byte) []byte { return appendBool(b, 1, m.Solved) }

func (m *SolvedResponse) unmarshalWire(b []byte) error {
	*m = SolvedResponse{}
	return consumeFields(b, func(f field) error {
		if f.num == 1 {
			return f.readBool(&m.Solved)
		}
		return nil
	})
}

func (m *WinnersRequest) appendWire(b []byte) []byte { return appendString(b, 1, m.Namespace) }

func (m *WinnersRequest) unmarshalWire(b []byte) error {
	*m = WinnersRequest{}
	return consumeFields(b, func(f field) error {
		if f.num == 1 {
			return f.readString(&m.Namespace)
		}
		return nil
	})
}

func (m *WinnersResponse) appendWire(b []byte) []byte {
	return appendRepeatedString(b, 1, m.Candidates)
}

func (m *WinnersResponse) unmarshalWire(b []byte) error {
	*m = WinnersResponse{}
	return consumeFields(b, func(f field) error {
		if f.num == 1 {
			return f.readRepeatedString(&m.Candidates)
		}
		return nil
	})
}

func (m *StatsRequest) appendWire(b []byte) []byte { return appendString(b, 1, m.Namespace) }

func (m *StatsRequest) unmarshalWire(b []byte) error {
	*m = StatsRequest{}
	return consumeFields(b, func(f field) error {
		if f.num == 1 {
			return f.readString(&m.Namespace)
		}
		return nil
	})
}

func (m *StatsResponse) appendWire(b []byte) []byte {
	b = appendInt(b, 1, m.Candidates)
	b = appendInt(b, 2, m.Pending)
	b = appendInt(b, 3, m.Leased)
	b = appendInt(b, 4, m.Succeeded)
	return appendInt(b, 5, m.Failed)
}

func (m *StatsResponse) unmarshalWire(b []byte) error {
	*m = StatsResponse{}
	return consumeFields(b, func(f field) error {
		switch f.num {
		case 1:
			return f.readInt64(&m.Candidates)
		case 2:
			return f.readInt64(&m.Pending)
		case 3:
			return f.readInt64(&m.Leased)
		case 4:
			return f.readInt64(&m.Succeeded)
		case 5:
			return f.readInt64(&m.Failed)
		}
		return nil
	})
}
