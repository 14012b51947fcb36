package config

const (
	WindowWidth  = 960
	WindowHeight = 640

	// Mono samples the glow level averages over
	LevelWindow     = 512
	SmoothingFactor = 0.6

	// Arena (the region the decline button lives in)
	ArenaTop    = 220
	ArenaHeight = 300
	ArenaMargin = 40

	// Button dimensions
	AcceptWidth   = 170
	AcceptHeight  = 64
	DeclineWidth  = 140
	DeclineHeight = 60
	ActionWidth   = 200
	ActionHeight  = 44

	// Dodge parameters
	DodgeSamples    = 90
	DodgePadding    = 12
	ProximityRadius = 24
	DodgeEasing     = 0.25

	// Escalation parameters
	ScaleK   = 0.25
	ScaleCap = 2.2

	// Confetti parameters
	BurstMin     = 150
	BurstMax     = 250
	Gravity      = 0.45
	DecayMin     = 0.005
	DecayJitter  = 0.004
	ParticleSize = 6

	// Background
	FloatingHearts  = 14
	ColorShiftSpeed = 0.004
	ToastFrames     = 240
)
