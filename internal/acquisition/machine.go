// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package acquisition runs the polling loop that sweeps every configured site
// and publishes complete sweeps through the record double buffer.
package acquisition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Thermoquad/wellgate/internal/config"
	"github.com/Thermoquad/wellgate/internal/field"
	"github.com/Thermoquad/wellgate/internal/record"
	"github.com/Thermoquad/wellgate/pkg/xbee"
)

// RemoteCommander sends remote AT commands over the radio
type RemoteCommander interface {
	RemoteAT(ctx context.Context, dest uint64, cmd string, value []byte) (*xbee.RemoteATCommandResponse, error)
}

// Sink receives every published sweep
type Sink interface {
	Handle(snap record.Snapshot)
}

// Options configures a Machine
type Options struct {
	Sites         []config.Site
	Manifold      config.ManifoldConfig
	ValveWiring   string
	Attempts      int
	SweepInterval time.Duration

	Radio   field.Channel
	Bus     *field.Channel  // required when ValveWiring is bus
	Remote  RemoteCommander // required for an analog manifold source
	Address *field.AddressBook
	Buffer  *record.DoubleBuffer
	Sink    Sink
	Logger  *slog.Logger
}

// Machine is the acquisition state machine. One goroutine drives it through
// Step or Run.
type Machine struct {
	opts   Options
	sites  []config.Site
	logger *slog.Logger
	health *healthTable

	cursor int
	phase  Phase
	sweeps uint64
}

// New validates options and creates a machine positioned before the first site
func New(opts Options) (*Machine, error) {
	if opts.Radio.Exchanger == nil || opts.Radio.Arbiter == nil {
		return nil, errors.New("acquisition: radio channel required")
	}
	if opts.Buffer == nil || opts.Address == nil {
		return nil, errors.New("acquisition: buffer and address book required")
	}
	if opts.Attempts <= 0 {
		opts.Attempts = field.DefaultAttempts
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	m := &Machine{
		opts:   opts,
		sites:  opts.Sites,
		logger: opts.Logger,
		health: newHealthTable(),
		cursor: -1,
		phase:  PhaseStart,
	}

	for _, s := range opts.Sites {
		if s.Class == config.ClassValveGroup && opts.ValveWiring == config.WiringBus {
			if opts.Bus == nil || opts.Bus.Exchanger == nil || opts.Bus.Arbiter == nil {
				return nil, errors.New("acquisition: bus channel required for bus-wired valve groups")
			}
			if _, ok := field.ValveBusSlave(s.ID); !ok {
				return nil, fmt.Errorf("acquisition: valve group %d has no bus slave", s.ID)
			}
		}
		m.health.add(s.ID, s.Name, s.Class)
	}
	if opts.Manifold.Enabled() && opts.Manifold.Source == config.SourceAnalog && opts.Remote == nil {
		return nil, errors.New("acquisition: remote commander required for analog manifold source")
	}
	return m, nil
}

// Phase returns the phase the next Step runs
func (m *Machine) Phase() Phase { return m.phase }

// Sweeps returns the number of published sweeps
func (m *Machine) Sweeps() uint64 { return m.sweeps }

// Health returns the poll health of every site in poll order
func (m *Machine) Health() []SiteHealth { return m.health.snapshot() }

// Run steps the machine until ctx is done, idling SweepInterval after each
// published sweep
func (m *Machine) Run(ctx context.Context) error {
	m.logger.Info("acquisition started", "sites", len(m.sites))
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(m.sites) == 0 {
			<-ctx.Done()
			return ctx.Err()
		}

		if swapped := m.Step(ctx); swapped && m.opts.SweepInterval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(m.opts.SweepInterval):
			}
		}
	}
}

// Step runs one phase and returns true if it published a sweep
func (m *Machine) Step(ctx context.Context) bool {
	if len(m.sites) == 0 {
		return false
	}

	switch m.phase {
	case PhaseStart:
		return m.start()

	case PhaseOilWellBasic, PhaseWaterWell, PhaseValveGroup:
		site := m.sites[m.cursor]
		if err := m.pollClass(ctx, site); err != nil {
			m.fail(site, err)
			m.phase = PhaseStart
			return false
		}
		if m.carries(site) {
			m.phase = PhaseManifoldPressure
			return false
		}
		m.health.success(site.ID, m.opts.Address.Learned(site.ID))
		m.phase = PhaseStart

	case PhaseManifoldPressure:
		site := m.sites[m.cursor]
		if err := m.pollManifold(ctx, site); err != nil {
			m.fail(site, err)
		} else {
			m.health.success(site.ID, m.opts.Address.Learned(site.ID))
		}
		m.phase = PhaseStart
	}
	return false
}

// start advances the cursor, swaps the buffer after the last site and
// branches on the next site's class
func (m *Machine) start() bool {
	swapped := false
	m.cursor++
	if m.cursor >= len(m.sites) {
		m.cursor = 0
		m.publish()
		swapped = true
	}

	switch m.sites[m.cursor].Class {
	case config.ClassOilWell:
		m.phase = PhaseOilWellBasic
	case config.ClassWaterWell:
		m.phase = PhaseWaterWell
	case config.ClassValveGroup:
		m.phase = PhaseValveGroup
	case config.ClassManifold:
		m.phase = PhaseManifoldPressure
	}
	return swapped
}

func (m *Machine) publish() {
	m.sweeps = m.opts.Buffer.Swap()
	m.logger.Debug("sweep published", "sweep", m.sweeps)
	if m.opts.Sink != nil {
		m.opts.Sink.Handle(m.opts.Buffer.Snapshot())
	}
}

func (m *Machine) fail(site config.Site, err error) {
	m.health.failure(site.ID, err)
	m.logger.Warn("site poll failed, keeping previous data", "site", site.ID, "phase", m.phase.String(), "err", err)
}

// carries reports whether site is the manifold pressure carrier
func (m *Machine) carries(site config.Site) bool {
	return m.opts.Manifold.Enabled() && m.opts.Manifold.SiteID == site.ID
}

// pollClass runs the class phase of site and commits the record on success
func (m *Machine) pollClass(ctx context.Context, site config.Site) error {
	rec, ok := m.opts.Buffer.Stage(site.ID)
	if !ok {
		return fmt.Errorf("site %d not in buffer", site.ID)
	}

	var err error
	switch m.phase {
	case PhaseOilWellBasic:
		err = m.pollOilWell(ctx, site, rec)
	case PhaseWaterWell:
		rec.Water = make([]uint16, record.Water.Size)
		err = m.runReads(ctx, m.opts.Radio, m.radioTarget(site), waterWellReads(rec), false)
	case PhaseValveGroup:
		err = m.pollValveGroup(ctx, site, rec)
	}
	if err != nil {
		return err
	}

	rec.Address = m.opts.Address.Get(site.ID)
	rec.Captured = time.Now()
	m.opts.Buffer.Commit(rec)
	return nil
}

func (m *Machine) pollOilWell(ctx context.Context, site config.Site, rec *record.SiteRecord) error {
	rec.WellBase = make([]uint16, record.WellBase.Size)
	rec.DiagramBasic = make([]uint16, record.DiagramBasic.Size)
	rec.Diagram = make([]uint16, site.DiagramBlocks*record.DiagramBlockSize)

	return m.runReads(ctx, m.opts.Radio, m.radioTarget(site), oilWellReads(rec, site.DiagramBlocks), true)
}

func (m *Machine) pollValveGroup(ctx context.Context, site config.Site, rec *record.SiteRecord) error {
	ch, target := m.opts.Radio, m.radioTarget(site)
	if m.opts.ValveWiring == config.WiringBus {
		slave, _ := field.ValveBusSlave(site.ID)
		ch, target = *m.opts.Bus, field.Target{Site: site.ID, Slave: slave}
	}

	raw := make([]uint16, record.Valve.Size)
	header := []readRange{{group: &raw, start: record.Valve.Start, qty: record.ValveHeaderSize}}
	if err := m.runReads(ctx, ch, target, header, false); err != nil {
		return err
	}

	count := int(raw[record.ValveCountIndex])
	if count > site.MaxValves {
		return fmt.Errorf("valve group %d reports %d valves, at most %d", site.ID, count, site.MaxValves)
	}

	reads := make([]readRange, 0, count)
	for i := 0; i < count; i++ {
		off := record.ValveOffset(i)
		reads = append(reads, readRange{group: &raw, start: off, qty: record.ValveSize, at: int(off)})
	}
	if err := m.runReads(ctx, ch, target, reads, false); err != nil {
		return err
	}

	rec.Valve = raw
	rec.ValvePresentation = buildValveView(raw, count)
	return nil
}

// pollManifold reads manifold pressure from the carrier site
func (m *Machine) pollManifold(ctx context.Context, site config.Site) error {
	rec, ok := m.opts.Buffer.Stage(site.ID)
	if !ok {
		return fmt.Errorf("site %d not in buffer", site.ID)
	}
	mf := m.opts.Manifold

	var value uint16
	switch mf.Source {
	case config.SourceAnalog:
		err := m.opts.Radio.Exchange(ctx, m.opts.Attempts, m.logger, "manifold sample", func(ctx context.Context, _ field.Exchanger) error {
			resp, err := m.opts.Remote.RemoteAT(ctx, m.opts.Address.Get(site.ID), "IS", nil)
			if err != nil {
				return err
			}
			sample, err := xbee.ParseIOSample(resp.Value)
			if err != nil {
				return err
			}
			v, ok := sample.AnalogValue(mf.Channel)
			if !ok {
				return fmt.Errorf("analog channel %d not sampled", mf.Channel)
			}
			value = v
			return nil
		})
		if err != nil {
			return err
		}

	default:
		regs := make([]uint16, 1)
		reads := []readRange{{group: &regs, start: mf.Register, qty: 1}}
		if err := m.runReads(ctx, m.opts.Radio, m.radioTarget(site), reads, false); err != nil {
			return err
		}
		value = regs[0]
	}

	rec.ManifoldPressure = []uint16{value}
	rec.Address = m.opts.Address.Get(site.ID)
	rec.Captured = time.Now()
	m.opts.Buffer.Commit(rec)
	return nil
}

func (m *Machine) radioTarget(site config.Site) field.Target {
	return field.Target{Site: site.ID, Slave: site.Slave, Address: m.opts.Address.Get(site.ID)}
}

// runReads performs every read of a table in order, aborting at the first
// exhausted read. With learn set, a site still on the broadcast placeholder
// takes the source of the first reply as its address, and the rest of the
// table goes out unicast.
func (m *Machine) runReads(ctx context.Context, ch field.Channel, t field.Target, reads []readRange, learn bool) error {
	for _, rd := range reads {
		var reply field.Reply
		op := fmt.Sprintf("site %d read %d+%d", t.Site, rd.start, rd.qty)
		err := ch.Exchange(ctx, m.opts.Attempts, m.logger, op, func(ctx context.Context, ex field.Exchanger) error {
			var err error
			reply, err = ex.ReadRegisters(ctx, t, rd.start, rd.qty)
			return err
		})
		if err != nil {
			return err
		}
		if learn && t.Address == xbee.AddressBroadcast && m.opts.Address.Learn(t.Site, reply.Source) {
			m.logger.Info("learned site address", "site", t.Site, "address", fmt.Sprintf("%016X", reply.Source))
			t.Address = reply.Source
		}
		copy((*rd.group)[rd.at:], reply.Registers)
	}
	return nil
}
