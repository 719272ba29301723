package terminal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dnldd/mtbridge/shared"
)

var errFake = errors.New("fake failure")

// fakeTerminal is an in-memory terminal that counts calls and tracks overlap.
type fakeTerminal struct {
	mtx        sync.Mutex
	initErr    error
	loginErr   error
	accountErr error
	ratesErr   error
	bars       []shared.Bar
	delay      time.Duration

	inits     int
	logins    int
	accounts  int
	rates     int
	shutdowns int
	active    int
	maxActive int
}

var _ shared.Terminal = (*fakeTerminal)(nil)

func (f *fakeTerminal) enter() {
	f.mtx.Lock()
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	delay := f.delay
	f.mtx.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
}

func (f *fakeTerminal) exit() {
	f.mtx.Lock()
	f.active--
	f.mtx.Unlock()
}

func (f *fakeTerminal) set(fn func(f *fakeTerminal)) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	fn(f)
}

func (f *fakeTerminal) counts() (inits, logins, accounts, rates, shutdowns int) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.inits, f.logins, f.accounts, f.rates, f.shutdowns
}

func (f *fakeTerminal) overlap() int {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.maxActive
}

func (f *fakeTerminal) Initialize(ctx context.Context) error {
	f.enter()
	defer f.exit()

	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.inits++
	return f.initErr
}

func (f *fakeTerminal) Login(ctx context.Context, creds shared.Credentials) error {
	f.enter()
	defer f.exit()

	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.logins++
	return f.loginErr
}

func (f *fakeTerminal) AccountInfo(ctx context.Context) (*shared.AccountInfo, error) {
	f.enter()
	defer f.exit()

	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.accounts++
	if f.accountErr != nil {
		return nil, f.accountErr
	}
	return &shared.AccountInfo{Login: 1}, nil
}

func (f *fakeTerminal) CopyRates(ctx context.Context, symbol string, timeframe shared.Timeframe, count int) ([]shared.Bar, error) {
	f.enter()
	defer f.exit()

	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.rates++
	if f.ratesErr != nil {
		return nil, f.ratesErr
	}
	return f.bars, nil
}

func (f *fakeTerminal) Shutdown(ctx context.Context) error {
	f.enter()
	defer f.exit()

	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.shutdowns++
	return nil
}
