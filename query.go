package twindex

// Metric names the similarity measure matches are scored and ranked with.
type Metric string

const (
	// Jaccard is intersection over union of the two shingle sets.
	Jaccard Metric = "jaccard"
	// Cosine is intersection over the geometric mean of the set sizes.
	Cosine Metric = "cosine"
	// Euclidean is the binary euclidean distance, lower is closer.
	Euclidean Metric = "euclid"
)

type KeyRange struct {
	From, To string
}

type Order string

const (
	Ascend  Order = "ASC"
	Descend Order = "DESC"
)

type queryOptions struct {
	order        Order
	keyRange     *KeyRange
	prefix       string
	pattern      string
	metric       Metric
	limit        int
	threshold    float64
	hasThreshold bool
}

func (qo *queryOptions) Order(o Order) *queryOptions {
	qo.order = o
	return qo
}

func (qo *queryOptions) KeyRange(from, to string) *queryOptions {
	qo.keyRange = &KeyRange{From: from, To: to}
	return qo
}

func (qo *queryOptions) Prefix(p string) *queryOptions {
	qo.prefix = p
	return qo
}

// Pattern restricts keys segment-wise, `essays/*` covers every key whose
// first segment is essays.
func (qo *queryOptions) Pattern(p string) *queryOptions {
	qo.pattern = p
	return qo
}

func (qo *queryOptions) Metric(m Metric) *queryOptions {
	qo.metric = m
	return qo
}

// Limit caps the number of matches after ranking. Zero means no cap.
func (qo *queryOptions) Limit(n int) *queryOptions {
	qo.limit = n
	return qo
}

// Threshold keeps only matches clearing t, at least t for similarities and
// at most t for distances.
func (qo *queryOptions) Threshold(t float64) *queryOptions {
	qo.threshold = t
	qo.hasThreshold = true
	return qo
}

func Q() *queryOptions {
	return &queryOptions{order: Ascend, metric: Jaccard}
}
