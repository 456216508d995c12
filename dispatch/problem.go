// Package dispatch implements §4.F: the battery/EV/grid dispatch linear
// program. Variables, constraints, and objective terms below are named
// after their spec counterparts (g_imp, g_exp, b_chg, b_dis, E, s_def,
// ev_def) so the two can be read side by side.
package dispatch

import (
	"fmt"
	"time"

	"github.com/oakfield-energy/battery-dispatch/dispatchmodel"
	"github.com/oakfield-energy/battery-dispatch/tariff"
	"gonum.org/v1/gonum/mat"
)

// Round-trip charge efficiency (§4.F constraint 2), modeled one-sided on
// charge as the spec directs.
const chargeEfficiency = 0.95

// socHardFloorFrac and socSoftFloorFrac are the two distinct thresholds
// §4.F uses: a hard bound on the E_i variable itself, and a separately
// penalized soft floor threshold that the s_def slack measures against.
const (
	socHardFloorFrac = 0.07
	socSoftFloorFrac = 0.30
)

// batteryChargeTiebreak, socDeficitPenalty and socNudge are the fixed
// objective weights from §4.F; Build applies each as the cost of its
// column. The EV deficit weight is not a constant here: Build takes it from
// BatteryConfig.EVChargePriceCap.
const (
	batteryChargeTiebreak = 0.001
	socDeficitPenalty     = 0.1
	socNudge              = 0.0001
)

// columns records, for one slot, the column index of every LP variable
// that belongs to it. EV columns are -1 when the run has no EV.
type columns struct {
	gimp, gexp   int
	bchg, bdis   int
	eprime       int
	sdef         int
	eevPrime     int // -1 if no EV
	pev          int // -1 if no EV
}

// Problem is a built, solver-ready LP together with enough bookkeeping to
// decode a raw solution vector back into per-slot physical quantities.
type Problem struct {
	a    *mat.Dense
	b    []float64
	c    []float64
	cols []columns

	evDef int // -1 if no EV target constraint was added

	cfg   dispatchmodel.BatteryConfig
	slots []time.Time
	elo   float64 // 0.07 * C_b, the shift applied to E_i -> eprime
}

// Build assembles the LP for one solve over slots[0:N]. prices[i] is the
// tariff for slots[i]'s hour; pvW[i]/loadW[i] are that slot's forecast PV
// and load power (W), matching §3's "Forecast series: mapping t -> W".
// Δ is inferred from the spacing between slots[0] and slots[1] (falling
// back to the system's fixed 5-minute slot when only one slot is given),
// so callers driving literal 1-hour test scenarios need not otherwise
// special-case the LP.
func Build(cfg dispatchmodel.BatteryConfig, slots []time.Time, prices []tariff.Price, pvW, loadW []float64) (*Problem, error) {
	n := len(slots)
	if n == 0 {
		return nil, fmt.Errorf("dispatch: empty horizon")
	}
	if len(prices) != n || len(pvW) != n || len(loadW) != n {
		return nil, fmt.Errorf("dispatch: slots/prices/pv/load length mismatch: %d/%d/%d/%d", n, len(prices), len(pvW), len(loadW))
	}

	delta := dispatchmodel.SlotFraction
	if n >= 2 {
		delta = slots[1].Sub(slots[0]).Hours()
	}
	elo := socHardFloorFrac * cfg.CapacityWh
	fuseWh := cfg.FuseCapacityW * delta
	chgMaxWh := cfg.MaxChargeW * delta
	disMaxWh := cfg.MaxDischargeW * delta
	evChgMaxWh := cfg.EVMaxChargeW * delta

	bd := newBuilder()
	cols := make([]columns, n)

	for i := range slots {
		buy := prices[i].Buy / 1000
		sell := prices[i].Sell / 1000

		c := columns{eevPrime: -1, pev: -1}
		c.gimp = bd.addBoundedVar(fmt.Sprintf("gimp_%d", i), buy, fuseWh)
		c.gexp = bd.addBoundedVar(fmt.Sprintf("gexp_%d", i), -sell, fuseWh)
		d := bd.addBoundedVar(fmt.Sprintf("d_%d", i), 0, 1)
		c.bchg = bd.addBoundedVar(fmt.Sprintf("bchg_%d", i), batteryChargeTiebreak, chgMaxWh)
		c.bdis = bd.addBoundedVar(fmt.Sprintf("bdis_%d", i), 0, disMaxWh)
		m := bd.addBoundedVar(fmt.Sprintf("m_%d", i), 0, 1)
		c.eprime = bd.addBoundedVar(fmt.Sprintf("eprime_%d", i), -socNudge, cfg.CapacityWh-elo)
		c.sdef = bd.addVar(fmt.Sprintf("sdef_%d", i), socDeficitPenalty)

		if cfg.HasEV {
			c.eevPrime = bd.addBoundedVar(fmt.Sprintf("eevprime_%d", i), 0, cfg.EVCapacityWh)
			c.pev = bd.addBoundedVar(fmt.Sprintf("pev_%d", i), 0, evChgMaxWh)
		}
		cols[i] = c

		// Constraint 3a: grid direction mutual exclusion.
		// gimp_i <= fuseWh*(1-d_i)  =>  gimp_i + fuseWh*d_i + slack = fuseWh
		bd.addInequalityLE(fmt.Sprintf("griddir_imp_%d", i), fuseWh, t(c.gimp, 1), t(d, fuseWh))
		// gexp_i <= fuseWh*d_i  =>  gexp_i - fuseWh*d_i + slack = 0
		bd.addInequalityLE(fmt.Sprintf("griddir_exp_%d", i), 0, t(c.gexp, 1), t(d, -fuseWh))

		// Constraint 3b: battery mode mutual exclusion.
		// bchg_i <= chgMaxWh*m_i  =>  bchg_i - chgMaxWh*m_i + slack = 0
		bd.addInequalityLE(fmt.Sprintf("mode_chg_%d", i), 0, t(c.bchg, 1), t(m, -chgMaxWh))
		// bdis_i <= disMaxWh*(1-m_i)  =>  bdis_i + disMaxWh*m_i + slack = disMaxWh
		bd.addInequalityLE(fmt.Sprintf("mode_dis_%d", i), disMaxWh, t(c.bdis, 1), t(m, disMaxWh))

		// Constraint 1: energy balance.
		// gimp - gexp + bdis - bchg - pev = load - pv
		terms := []term{t(c.gimp, 1), t(c.gexp, -1), t(c.bdis, 1), t(c.bchg, -1)}
		if cfg.HasEV {
			terms = append(terms, t(c.pev, -1))
		}
		bd.addRow(namedRow(fmt.Sprintf("balance_%d", i), (loadW[i]-pvW[i])*delta, terms...))

		// Constraint 2: battery state. E_{-1} := E0.
		if i == 0 {
			// eprime_0 - eta*bchg_0 + bdis_0 = E0 - elo
			bd.addRow(namedRow(fmt.Sprintf("batstate_%d", i), cfg.InitialEnergyWh-elo,
				t(c.eprime, 1), t(c.bchg, -chargeEfficiency), t(c.bdis, 1)))
		} else {
			bd.addRow(namedRow(fmt.Sprintf("batstate_%d", i), 0,
				t(c.eprime, 1), t(cols[i-1].eprime, -1), t(c.bchg, -chargeEfficiency), t(c.bdis, 1)))
		}

		// Constraint 4: SOC soft floor. sdef_i + E_i >= socSoftFloorFrac*C_b,
		// i.e. sdef_i + eprime_i - surplus = socSoftFloorFrac*C_b - elo.
		bd.addInequalityGE(fmt.Sprintf("socfloor_%d", i), socSoftFloorFrac*cfg.CapacityWh-elo,
			t(c.sdef, 1), t(c.eprime, 1))

		// Constraint 5: EV SOC evolution. E_ev_{-1} seeded from config.
		if cfg.HasEV {
			if i == 0 {
				bd.addRow(namedRow(fmt.Sprintf("evstate_%d", i), cfg.EVInitialEnergyWh,
					t(c.eevPrime, 1), t(c.pev, -1)))
			} else {
				bd.addRow(namedRow(fmt.Sprintf("evstate_%d", i), 0,
					t(c.eevPrime, 1), t(cols[i-1].eevPrime, -1), t(c.pev, -1)))
			}
		}
	}

	// Terminal valuation: -sell(hour(t_{N-1})) * E_{N-1}, folded onto the
	// last slot's eprime coefficient (the elo offset this introduces is a
	// constant and does not change the optimal x).
	lastSell := prices[n-1].Sell / 1000
	bd.addToCost(cols[n-1].eprime, -lastSell)

	p := &Problem{cols: cols, cfg: cfg, slots: append([]time.Time(nil), slots...), elo: elo, evDef: -1}

	// Constraint 6: EV target, only when a ready time was requested.
	if cfg.HasEV && cfg.EVReadyTime != nil {
		tStar, target := evTarget(slots, cfg, *cfg.EVReadyTime)
		evDef := bd.addVar("ev_def", 0)
		bd.addToCost(evDef, cfg.EVChargePriceCap/1000)
		// ev_def + eevprime_{tStar} - surplus = target
		bd.addInequalityGE("ev_target", target, t(evDef, 1), t(cols[tStar].eevPrime, 1))
		p.evDef = evDef
	}

	a, b, c, err := bd.build()
	if err != nil {
		return nil, err
	}
	p.a, p.b, p.c = a, b, c
	return p, nil
}

// evTarget resolves §4.F constraint 6: the target slot index and the
// energy target at that slot. When readyTime falls beyond the horizon, the
// target is scaled down by how much of the time-to-readiness the horizon
// actually covers, since the battery cannot be asked to do more charging
// than the horizon gives it time for.
func evTarget(slots []time.Time, cfg dispatchmodel.BatteryConfig, readyTime time.Time) (idx int, target float64) {
	last := len(slots) - 1
	for i, s := range slots {
		if !s.Before(readyTime) {
			return i, cfg.EVCapacityWh
		}
	}
	elapsed := slots[last].Sub(slots[0]).Seconds()
	total := readyTime.Sub(slots[0]).Seconds()
	frac := 1.0
	if total > 0 {
		frac = elapsed / total
		if frac > 1 {
			frac = 1
		}
	}
	return last, cfg.EVCapacityWh * frac
}
