package metrics

import "time"

// NopMetrics discards every observation.
type NopMetrics struct{}

var _ Collector = (*NopMetrics)(nil)

// NewNop returns a collector that records nothing.
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

func (n *NopMetrics) RecordInsert(string)                        {}
func (n *NopMetrics) RecordPoll(bool, time.Duration)             {}
func (n *NopMetrics) RecordReturn(string, bool)                  {}
func (n *NopMetrics) RecordProtocolError(string)                 {}
func (n *NopMetrics) RecordVerify(bool, time.Duration)           {}
func (n *NopMetrics) SetActiveWorkers(int)                       {}
func (n *NopMetrics) ObserveWrite(time.Duration, int)            {}
func (n *NopMetrics) ObserveRead(time.Duration, int)             {}
func (n *NopMetrics) ObserveBatchCommit(time.Duration, int, int) {}
