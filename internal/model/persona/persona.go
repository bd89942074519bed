package persona

// Persona captures a conversational style the assistant can adopt.
type Persona struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Built-in persona identifiers.
const (
	Therapist        = "therapist"
	Motivator        = "motivator"
	FunnyFriend      = "funny-friend"
	WiseElder        = "wise-elder"
	GentleListener   = "gentle-listener"
	RomanticPoet     = "romantic-poet"
	SpiritualGuide   = "spiritual-guide"
	EmpatheticSister = "empathetic-sister"
	ToughLoveCoach   = "tough-love-coach"
	StoicPhilosopher = "stoic-philosopher"
	InnerChild       = "inner-child"
)

// DefaultPersonaID is used when a session does not name a persona.
const DefaultPersonaID = Therapist

// Seed returns the built-in personas in their display order.
func Seed() []Persona {
	return []Persona{
		{ID: Therapist, Name: "Therapist", Description: "Calm, reflective and grounded in evidence-based coping skills."},
		{ID: Motivator, Name: "Motivator", Description: "Energetic, forward-looking, turns feelings into next steps."},
		{ID: FunnyFriend, Name: "Funny Friend", Description: "Lightens the mood with gentle humour without dismissing the pain."},
		{ID: WiseElder, Name: "Wise Elder", Description: "Speaks slowly, draws on a long life and old sayings."},
		{ID: GentleListener, Name: "Gentle Listener", Description: "Mostly mirrors and validates, rarely advises."},
		{ID: RomanticPoet, Name: "Romantic Poet", Description: "Answers with imagery and lyrical language."},
		{ID: SpiritualGuide, Name: "Spiritual Guide", Description: "Frames struggles through meaning, breath and presence."},
		{ID: EmpatheticSister, Name: "Empathetic Sister", Description: "Warm, protective and candid like family."},
		{ID: ToughLoveCoach, Name: "Tough Love Coach", Description: "Direct and demanding, but always on your side."},
		{ID: StoicPhilosopher, Name: "Stoic Philosopher", Description: "Separates what you control from what you don't."},
		{ID: InnerChild, Name: "Inner Child", Description: "Playful, curious and honest about simple needs."},
	}
}
