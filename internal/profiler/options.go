package profiler

type markerOptions struct {
	actions               map[Action]struct{}
	categories            []string
	recordInstantOnStart  bool
	recordInstantOnFinish bool
}

func defaultMarkerOptions() markerOptions {
	return markerOptions{
		actions: map[Action]struct{}{
			ActionWarmup: {},
			ActionActive: {},
		},
	}
}

// MarkerOption configures a marker at creation time.
type MarkerOption func(*markerOptions)

// WithActions replaces the set of sampling actions the marker records on.
// The default is warmup and active.
func WithActions(actions ...Action) MarkerOption {
	return func(o *markerOptions) {
		o.actions = make(map[Action]struct{}, len(actions))
		for _, a := range actions {
			o.actions[a] = struct{}{}
		}
	}
}

// WithCategories sets the marker's categories. Categories are re-applied on
// every Profiler.Marker lookup, so the latest caller wins.
func WithCategories(categories ...string) MarkerOption {
	return func(o *markerOptions) {
		o.categories = categories
	}
}

// WithInstantOnStart makes the marker emit an instant event alongside every
// recorded duration start.
func WithInstantOnStart() MarkerOption {
	return func(o *markerOptions) {
		o.recordInstantOnStart = true
	}
}

// WithInstantOnFinish makes the marker emit an instant event alongside every
// recorded duration end.
func WithInstantOnFinish() MarkerOption {
	return func(o *markerOptions) {
		o.recordInstantOnFinish = true
	}
}
