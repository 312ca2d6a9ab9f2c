package app

import engine "nbbatch/internal/engine"

// newEngineFn is swapped in tests to avoid spawning real kernels.
var newEngineFn = func() engine.Engine { return engine.New() }
