package exaroton

import "fmt"

// Status is a server lifecycle state code.
type Status int

const (
	StatusOffline Status = iota
	StatusOnline
	StatusStarting
	StatusStopping
	StatusRestarting
	StatusSaving
	StatusLoading
	StatusCrashed
	StatusPending
	StatusTransferring
	StatusPreparing
)

var statusNames = map[Status]string{
	StatusOffline:      "OFFLINE",
	StatusOnline:       "ONLINE",
	StatusStarting:     "STARTING",
	StatusStopping:     "STOPPING",
	StatusRestarting:   "RESTARTING",
	StatusSaving:       "SAVING",
	StatusLoading:      "LOADING",
	StatusCrashed:      "CRASHED",
	StatusPending:      "PENDING",
	StatusTransferring: "TRANSFERRING",
	StatusPreparing:    "PREPARING",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(s))
}
