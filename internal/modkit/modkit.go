package modkit

import "seochecker/internal/modkit/module"

// Module is what the composition root mounts and registers
type Module = module.Module
