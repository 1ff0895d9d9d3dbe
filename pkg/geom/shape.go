package geom

// ShapeKind 判定形状
type ShapeKind string

const (
	ShapeSphere ShapeKind = "sphere"
	ShapeCone   ShapeKind = "cone"
	ShapeLine   ShapeKind = "line"
)

// Shape 伤害判定区域
// Sphere: Origin + Radius
// Cone: Origin + Dir + Radius + HalfAngle(度)
// Line: Origin 沿 Dir 延伸 Length，宽度 Width
type Shape struct {
	Kind      ShapeKind
	Origin    Vec2
	Dir       Vec2
	Radius    float64
	HalfAngle float64
	Length    float64
	Width     float64
}

// Sphere 圆形区域
func Sphere(origin Vec2, radius float64) Shape {
	return Shape{Kind: ShapeSphere, Origin: origin, Radius: radius}
}

// Cone 扇形区域
func Cone(origin, dir Vec2, radius, halfAngle float64) Shape {
	return Shape{Kind: ShapeCone, Origin: origin, Dir: dir.Normalize(), Radius: radius, HalfAngle: halfAngle}
}

// Line 矩形条带区域
func Line(origin, dir Vec2, length, width float64) Shape {
	return Shape{Kind: ShapeLine, Origin: origin, Dir: dir.Normalize(), Length: length, Width: width}
}

// Overlaps 判定半径为 r 的圆是否与区域相交
func (s Shape) Overlaps(p Vec2, r float64) bool {
	switch s.Kind {
	case ShapeSphere:
		return s.Origin.Dist(p) <= s.Radius+r
	case ShapeCone:
		d := p.Sub(s.Origin)
		dist := d.Len()
		if dist > s.Radius+r {
			return false
		}
		if dist <= r || s.Dir.IsZero() {
			return true
		}
		return AngleBetween(s.Dir, d) <= s.HalfAngle
	case ShapeLine:
		if s.Dir.IsZero() {
			return s.Origin.Dist(p) <= r
		}
		d := p.Sub(s.Origin)
		along := d.Dot(s.Dir)
		if along < -r || along > s.Length+r {
			return false
		}
		side := d.Cross(s.Dir)
		if side < 0 {
			side = -side
		}
		return side <= s.Width/2+r
	default:
		return false
	}
}
