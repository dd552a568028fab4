// Package simulation runs one rabbit population from its initial seeding to
// the horizon (or to extinction) and reports what happened.
//
// A run exclusively owns its Pool and its random stream; nothing is shared
// between runs, so the Monte Carlo driver can execute any number of them in
// parallel. The outcome of a run depends only on its Config and run index.
//
// Usage:
//
//	sim, err := simulation.New(simulation.Config{
//	    Months:            240,
//	    InitialPopulation: 2,
//	    BaseSeed:          42,
//	    KeepSeries:        true,
//	})
//	if err != nil {
//	    return err
//	}
//	res := sim.Run(0)
//	fmt.Println(res.FinalAlive, res.ExtinctionMonth)
package simulation
