// Copyright (c) Drift Apps, Inc.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package progress

type (
	// Kind identifies the variant of a State value.
	Kind string
	// DoneReason qualifies a KindCycleDone state.
	DoneReason string
)

const (
	KindNotStarted                Kind = "not-started"
	KindCycleStarted              Kind = "cycle-started"
	KindDownloadStarted           Kind = "download-started"
	KindDownloading               Kind = "downloading"
	KindExtractionStarted         Kind = "extraction-started"
	KindExtracting                Kind = "extracting"
	KindReadyToInstallAndRelaunch Kind = "ready-to-install-and-relaunch"
	KindInstallationStarted       Kind = "installation-started"
	KindInstalling                Kind = "installing"
	KindCycleDone                 Kind = "cycle-done"
	KindError                     Kind = "error"
)

const (
	DoneFinishedNoError                DoneReason = "finishedNoError"
	DoneFinishedNoUpdateFound          DoneReason = "finishedNoUpdateFound"
	DoneDismissedNoError               DoneReason = "dismissedNoError"
	DoneDismissingObsoleteUpdate       DoneReason = "dismissingObsoleteUpdate"
	DonePausedAtDownloadCheckpoint     DoneReason = "pausedAtDownloadCheckpoint"
	DonePausedAtRestartCheckpoint      DoneReason = "pausedAtRestartCheckpoint"
	DoneProceededToInstallAtCheckpoint DoneReason = "proceededToInstallAtRestartCheckpoint"
)

// State is the progress of the in-flight (or idle) update attempt.
// Fraction is meaningful for KindDownloading and KindExtracting, Reason
// for KindCycleDone, Cause for KindError.
type State struct {
	Kind     Kind
	Fraction float64
	Reason   DoneReason
	Cause    error
}

func NotStarted() State      { return State{Kind: KindNotStarted} }
func CycleStarted() State    { return State{Kind: KindCycleStarted} }
func DownloadStarted() State { return State{Kind: KindDownloadStarted} }
func Downloading(fraction float64) State {
	return State{Kind: KindDownloading, Fraction: fraction}
}
func ExtractionStarted() State { return State{Kind: KindExtractionStarted} }
func Extracting(fraction float64) State {
	return State{Kind: KindExtracting, Fraction: fraction}
}
func ReadyToInstallAndRelaunch() State { return State{Kind: KindReadyToInstallAndRelaunch} }
func InstallationStarted() State       { return State{Kind: KindInstallationStarted} }
func Installing() State                { return State{Kind: KindInstalling} }

func CycleDone(reason DoneReason) State {
	return State{Kind: KindCycleDone, Reason: reason}
}
func ErrorState(cause error) State { return State{Kind: KindError, Cause: cause} }

// IdleOrTerminal reports whether a new cycle may start from this state.
// Checkpoints are deliberately excluded: an update awaiting user action
// must not be clobbered by a new check.
func (s State) IdleOrTerminal() bool {
	switch s.Kind {
	case KindNotStarted, KindError:
		return true
	case KindCycleDone:
		switch s.Reason {
		case DoneFinishedNoError, DoneFinishedNoUpdateFound, DoneDismissedNoError, DoneDismissingObsoleteUpdate:
			return true
		}
	}
	return false
}

// ResumeAction is the deferred "continue the paused update" action held
// while the machine sits at a checkpoint. The zero value is not callable,
// which makes "is resumable" a plain data query.
type ResumeAction struct {
	fn func()
}

func ResumeNone() ResumeAction { return ResumeAction{} }

func ResumeWith(fn func()) ResumeAction { return ResumeAction{fn: fn} }

func (a ResumeAction) Callable() bool { return a.fn != nil }

// Invoke runs the deferred action; no-op when not callable.
func (a ResumeAction) Invoke() {
	if a.fn != nil {
		a.fn()
	}
}
