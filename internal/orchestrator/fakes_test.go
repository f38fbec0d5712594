package orchestrator

import (
	"sync"

	"github.com/wolfeidau/sessiond/internal/billing"
	"github.com/wolfeidau/sessiond/internal/dataplane"
)

// fakeReporter is a controllable billing collaborator. Callbacks fire
// synchronously unless holdReports is set, in which case usage report
// completions are stashed for the test to release.
type fakeReporter struct {
	mu sync.Mutex

	createErr   error
	createResp  *billing.CreateSessionResponse
	createCalls []*billing.CreateSessionRequest

	holdReports bool
	reportErr   error
	reportCalls []*billing.UsageReportRequest
	heldReports []func(*billing.UsageReportResponse, error)

	termErr   error
	termCalls []*billing.TerminationRequest
}

func (f *fakeReporter) CreateSession(req *billing.CreateSessionRequest, done func(*billing.CreateSessionResponse, error)) {
	f.mu.Lock()
	f.createCalls = append(f.createCalls, req)
	err := f.createErr
	resp := f.createResp
	f.mu.Unlock()

	if err != nil {
		done(nil, err)
		return
	}
	if resp == nil {
		resp = &billing.CreateSessionResponse{
			SessionID: req.SessionID,
			Credits:   []billing.CreditGrant{{ChargingKey: 1, GrantedBytes: 1 << 20}},
		}
	}
	done(resp, nil)
}

func (f *fakeReporter) ReportUsage(req *billing.UsageReportRequest, done func(*billing.UsageReportResponse, error)) {
	f.mu.Lock()
	f.reportCalls = append(f.reportCalls, req)
	if f.holdReports {
		f.heldReports = append(f.heldReports, done)
		f.mu.Unlock()
		return
	}
	err := f.reportErr
	f.mu.Unlock()

	if err != nil {
		done(nil, err)
		return
	}
	done(&billing.UsageReportResponse{}, nil)
}

func (f *fakeReporter) ReportTermination(req *billing.TerminationRequest, done func(error)) {
	f.mu.Lock()
	f.termCalls = append(f.termCalls, req)
	err := f.termErr
	f.mu.Unlock()
	done(err)
}

// releaseReport completes the oldest held usage report.
func (f *fakeReporter) releaseReport(resp *billing.UsageReportResponse, err error) {
	f.mu.Lock()
	done := f.heldReports[0]
	f.heldReports = f.heldReports[1:]
	f.mu.Unlock()
	done(resp, err)
}

func (f *fakeReporter) createCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.createCalls)
}

func (f *fakeReporter) reportCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reportCalls)
}

func (f *fakeReporter) termCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.termCalls)
}

// fakeAgent is a controllable dataplane collaborator.
type fakeAgent struct {
	mu sync.Mutex

	setupResult dataplane.SetupResult
	setupErr    error
	setupEpochs []uint64
	deactivated []string
}

func (f *fakeAgent) SetupFlows(epoch uint64, rules []dataplane.SessionRules, done func(dataplane.SetupResult, error)) {
	f.mu.Lock()
	f.setupEpochs = append(f.setupEpochs, epoch)
	result := f.setupResult
	err := f.setupErr
	f.mu.Unlock()
	done(result, err)
}

func (f *fakeAgent) DeactivateFlows(imsi string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deactivated = append(f.deactivated, imsi)
}

func (f *fakeAgent) setResult(result dataplane.SetupResult, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setupResult = result
	f.setupErr = err
}

func (f *fakeAgent) epochs() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint64(nil), f.setupEpochs...)
}

func (f *fakeAgent) deactivatedIMSIs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deactivated...)
}
