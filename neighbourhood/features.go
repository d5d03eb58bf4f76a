package neighbourhood

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/pcgeom/utils"
)

// GeomFeature selects a descriptor derived from the eigen values l1 >= l2 >= l3 of the
// covariance matrix. Ratio descriptors use the eigen values normalized by their sum.
type GeomFeature int

// The available geometric features.
const (
	EigenValuesSum GeomFeature = iota + 1
	Omnivariance
	EigenEntropy
	Anisotropy
	Planarity
	Linearity
	PCA1
	PCA2
	SurfaceVariation
	Sphericity
	Verticality
	EigenValue1
	EigenValue2
	EigenValue3
)

var featureNames = map[GeomFeature]string{
	EigenValuesSum:   "eigenvalues_sum",
	Omnivariance:     "omnivariance",
	EigenEntropy:     "eigenentropy",
	Anisotropy:       "anisotropy",
	Planarity:        "planarity",
	Linearity:        "linearity",
	PCA1:             "pca1",
	PCA2:             "pca2",
	SurfaceVariation: "surface_variation",
	Sphericity:       "sphericity",
	Verticality:      "verticality",
	EigenValue1:      "eigenvalue1",
	EigenValue2:      "eigenvalue2",
	EigenValue3:      "eigenvalue3",
}

// Valid reports whether f is one of the known features.
func (f GeomFeature) Valid() bool {
	_, ok := featureNames[f]
	return ok
}

func (f GeomFeature) String() string {
	if name, ok := featureNames[f]; ok {
		return name
	}
	return "unknown"
}

// CurvatureType selects how curvature is estimated.
type CurvatureType int

// The available curvature estimators.
const (
	GaussianCurvature CurvatureType = iota + 1
	MeanCurvature
	NormalChangeRate
)

// Valid reports whether t is one of the known curvature types.
func (t CurvatureType) Valid() bool {
	return t >= GaussianCurvature && t <= NormalChangeRate
}

func (t CurvatureType) String() string {
	switch t {
	case GaussianCurvature:
		return "gaussian"
	case MeanCurvature:
		return "mean"
	case NormalChangeRate:
		return "normal_change_rate"
	default:
		return "unknown"
	}
}

// MinPointsForQuadric is the number of points needed to fit a local quadric.
const MinPointsForQuadric = 6

// MinPointsForPlane is the number of points needed to fit a plane.
const MinPointsForPlane = 3

const epsilon = 1e-12

// Feature computes a geometric feature. ok is false when the neighbourhood is too small or
// degenerate for it.
func (n *Neighbourhood) Feature(f GeomFeature) (float64, bool) {
	values, vectors, ok := n.Eigen()
	if !ok {
		return math.NaN(), false
	}
	l1, l2, l3 := values[0], values[1], values[2]
	sum := l1 + l2 + l3

	switch f {
	case EigenValuesSum:
		return sum, true
	case EigenValue1:
		return l1, true
	case EigenValue2:
		return l2, true
	case EigenValue3:
		return l3, true
	case Verticality:
		return utils.Clamp(1-math.Abs(vectors[2].Dot(r3.Vector{Z: 1})), 0, 1), true
	default:
	}

	if sum < epsilon {
		return math.NaN(), false
	}
	e1, e2, e3 := l1/sum, l2/sum, l3/sum

	switch f {
	case Omnivariance:
		return math.Cbrt(e1 * e2 * e3), true
	case EigenEntropy:
		entropy := 0.0
		for _, e := range []float64{e1, e2, e3} {
			if e > 0 {
				entropy -= e * math.Log(e)
			}
		}
		return entropy, true
	case Anisotropy:
		return (e1 - e3) / e1, true
	case Planarity:
		return (e2 - e3) / e1, true
	case Linearity:
		return (e1 - e2) / e1, true
	case PCA1:
		return e1, true
	case PCA2:
		return e2, true
	case SurfaceVariation:
		return e3, true
	case Sphericity:
		return e3 / e1, true
	default:
		return math.NaN(), false
	}
}

// Curvature estimates the curvature of the surface sampled by the neighbourhood at p.
// Gaussian and mean curvatures come from the quadric z = a + bx + cy + dx^2 + exy + fy^2
// fitted in the principal frame; the mean curvature is unsigned since the orientation of
// the frame is arbitrary. The normal change rate is l3 / (l1 + l2 + l3).
func (n *Neighbourhood) Curvature(p r3.Vector, t CurvatureType) (float64, bool) {
	switch t {
	case NormalChangeRate:
		values, _, ok := n.Eigen()
		if !ok {
			return math.NaN(), false
		}
		sum := values[0] + values[1] + values[2]
		if sum < epsilon {
			// every point at the same location
			return 0, true
		}
		return values[2] / sum, true
	case GaussianCurvature, MeanCurvature:
		q, ok := n.Quadric()
		if !ok {
			return math.NaN(), false
		}
		u, v, _ := q.Frame.Local(p)
		zu := q.B + 2*q.D*u + q.E*v
		zv := q.C + q.E*u + 2*q.F*v
		zuu, zuv, zvv := 2*q.D, q.E, 2*q.F
		g := 1 + zu*zu + zv*zv
		if t == GaussianCurvature {
			return (zuu*zvv - zuv*zuv) / (g * g), true
		}
		mean := ((1+zv*zv)*zuu - 2*zu*zv*zuv + (1+zu*zu)*zvv) / (2 * math.Pow(g, 1.5))
		return math.Abs(mean), true
	default:
		return math.NaN(), false
	}
}

// Frame is an orthonormal frame centered on Origin.
type Frame struct {
	Origin  r3.Vector
	U, V, W r3.Vector
}

// Local returns the coordinates of p in the frame.
func (f Frame) Local(p r3.Vector) (u, v, w float64) {
	d := p.Sub(f.Origin)
	return d.Dot(f.U), d.Dot(f.V), d.Dot(f.W)
}

// Quadric is the height function w = A + Bu + Cv + Du^2 + Euv + Fv^2 over a frame.
type Quadric struct {
	Frame            Frame
	A, B, C, D, E, F float64
}

// Quadric fits a local height function over the principal frame of the neighbourhood,
// whose third axis is the normal.
func (n *Neighbourhood) Quadric() (Quadric, bool) {
	if n.Size() < MinPointsForQuadric {
		return Quadric{}, false
	}
	_, vectors, ok := n.Eigen()
	if !ok {
		return Quadric{}, false
	}
	frame := Frame{Origin: n.Centroid(), U: vectors[0], V: vectors[1], W: vectors[2]}

	rows := n.Size()
	a := mat.NewDense(rows, 6, nil)
	b := mat.NewVecDense(rows, nil)
	for k := 0; k < rows; k++ {
		u, v, w := frame.Local(n.Point(k))
		a.SetRow(k, []float64{1, u, v, u * u, u * v, v * v})
		b.SetVec(k, w)
	}

	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		return Quadric{}, false
	}
	return Quadric{
		Frame: frame,
		A:     x.AtVec(0),
		B:     x.AtVec(1),
		C:     x.AtVec(2),
		D:     x.AtVec(3),
		E:     x.AtVec(4),
		F:     x.AtVec(5),
	}, true
}

// Roughness returns the distance of p to the least squares plane of the neighbourhood.
// With an up direction the distance is signed, positive above the plane; otherwise it is
// unsigned. The neighbourhood is expected not to contain p itself.
func (n *Neighbourhood) Roughness(p r3.Vector, up *r3.Vector) (float64, bool) {
	plane, ok := n.LeastSquaresPlane()
	if !ok {
		return math.NaN(), false
	}
	d := plane.SignedDistance(p)
	if up == nil {
		return math.Abs(d), true
	}
	if plane.Normal.Dot(*up) < 0 {
		d = -d
	}
	return d, true
}

// MomentOrder1 returns the first order moment of the neighbourhood around p along the
// local normal: the squared mean projection divided by the mean squared projection of the
// offsets q - p. It is close to 0 when p lies in the middle of a flat region and close to 1
// when the neighbours all lie on one side of p.
func (n *Neighbourhood) MomentOrder1(p r3.Vector) (float64, bool) {
	normal, ok := n.Normal()
	if !ok {
		return math.NaN(), false
	}
	var m1, m2 float64
	for k := 0; k < n.Size(); k++ {
		proj := n.Point(k).Sub(p).Dot(normal)
		m1 += proj
		m2 += proj * proj
	}
	count := float64(n.Size())
	m1 /= count
	m2 /= count
	if m2 < epsilon {
		return 0, true
	}
	return m1 * m1 / m2, true
}
