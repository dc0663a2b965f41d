package tui

import (
	"os"

	"landRegistry/pkg/contract"
	"landRegistry/pkg/journal"
	"landRegistry/pkg/registry"
	"landRegistry/pkg/upload"
)

// LoginDone carries the outcome of a login attempt.
type LoginDone struct {
	Login *registry.Login
	Err   error
	// Alerts are the alerts raised during the attempt.
	Alerts []string
	Route  string
}

// Navigated asks the app to show the page for Route.
type Navigated struct {
	Route string
}

// SubmitDone carries the outcome of a registration submit.
type SubmitDone struct {
	Receipt *contract.Receipt
	Err     error
	Route   string
}

// UploadProgress reports a progress change of a slot's session.
type UploadProgress struct {
	Slot    int
	Percent int
	session *upload.Session
	watch   <-chan int
	file    *os.File
}

// UploadFinished is sent when a slot's session completes or fails.
type UploadFinished struct {
	Slot    int
	Hash    string
	Err     error
	session *upload.Session
}

// SubmissionsLoaded carries the journal rows for the dashboard.
type SubmissionsLoaded struct {
	Submissions []journal.Submission
	Err         error
}
