package integration

// OutcomeKind tags the result of processing one order
type OutcomeKind string

const (
	OutcomeOk   OutcomeKind = "OK"
	OutcomeSkip OutcomeKind = "SKIP"
	OutcomeFail OutcomeKind = "FAIL"
)

// String returns the string representation of OutcomeKind
func (k OutcomeKind) String() string {
	return string(k)
}

// Outcome is the result of processing one order
type Outcome struct {
	Kind    OutcomeKind
	OrderID string
	// State is the last state the order reached
	State OrderState
	// Draft is set when an invoice was left unsubmitted with an outstanding balance
	Draft  bool
	Reason string
	Err    error
}

// Ok creates a successful outcome
func Ok(orderID string, state OrderState) Outcome {
	return Outcome{Kind: OutcomeOk, OrderID: orderID, State: state}
}

// Skip creates an outcome for an order that was deliberately not processed
func Skip(orderID string, state OrderState, reason string) Outcome {
	return Outcome{Kind: OutcomeSkip, OrderID: orderID, State: state, Reason: reason}
}

// Fail creates a failed outcome
func Fail(orderID string, state OrderState, err error) Outcome {
	return Outcome{Kind: OutcomeFail, OrderID: orderID, State: state, Reason: err.Error(), Err: err}
}

// AsDraft marks an Ok outcome as having left a draft
func (o Outcome) AsDraft() Outcome {
	o.Draft = true
	return o
}

// ---------------------------------------------------------------------------
// OrderState
// ---------------------------------------------------------------------------

// OrderState is the position of an order in the synchronization state machine
type OrderState string

const (
	OrderStateFetched          OrderState = "FETCHED"
	OrderStateCustomerResolved OrderState = "CUSTOMER_RESOLVED"
	OrderStateOrderRecorded    OrderState = "ORDER_RECORDED"
	OrderStateInvoiced         OrderState = "INVOICED"
	OrderStateRefunded         OrderState = "REFUNDED"
)

// String returns the string representation of OrderState
func (s OrderState) String() string {
	return string(s)
}

var orderStateRank = map[OrderState]int{
	OrderStateFetched:          0,
	OrderStateCustomerResolved: 1,
	OrderStateOrderRecorded:    2,
	OrderStateInvoiced:         3,
	OrderStateRefunded:         4,
}

// CanAdvanceTo returns true if next directly follows s
func (s OrderState) CanAdvanceTo(next OrderState) bool {
	from, ok := orderStateRank[s]
	if !ok {
		return false
	}
	to, ok := orderStateRank[next]
	return ok && to == from+1
}
