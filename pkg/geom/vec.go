package geom

import "math"

const epsilon = 1e-9

// Vec2 二维向量
type Vec2 struct {
	X float64 `json:"x" codec:"x"`
	Y float64 `json:"y" codec:"y"`
}

// V 构造向量
func V(x, y float64) Vec2 {
	return Vec2{X: x, Y: y}
}

func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{v.X + o.X, v.Y + o.Y}
}

func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{v.X - o.X, v.Y - o.Y}
}

func (v Vec2) Scale(s float64) Vec2 {
	return Vec2{v.X * s, v.Y * s}
}

func (v Vec2) Dot(o Vec2) float64 {
	return v.X*o.X + v.Y*o.Y
}

func (v Vec2) Cross(o Vec2) float64 {
	return v.X*o.Y - v.Y*o.X
}

func (v Vec2) Len() float64 {
	return math.Hypot(v.X, v.Y)
}

func (v Vec2) Dist(o Vec2) float64 {
	return v.Sub(o).Len()
}

// Normalize 单位化，零向量返回零向量
func (v Vec2) Normalize() Vec2 {
	l := v.Len()
	if l < epsilon {
		return Vec2{}
	}
	return Vec2{v.X / l, v.Y / l}
}

// IsZero 是否近似零向量
func (v Vec2) IsZero() bool {
	return math.Abs(v.X) < epsilon && math.Abs(v.Y) < epsilon
}

// Angle 向量方向角（弧度）
func (v Vec2) Angle() float64 {
	return math.Atan2(v.Y, v.X)
}

// FromAngle 由弧度构造单位向量
func FromAngle(rad float64) Vec2 {
	return Vec2{math.Cos(rad), math.Sin(rad)}
}

// AngleBetween 两个方向之间的夹角（度，0~180）
func AngleBetween(a, b Vec2) float64 {
	an, bn := a.Normalize(), b.Normalize()
	if an.IsZero() || bn.IsZero() {
		return 0
	}
	return math.Abs(math.Atan2(an.Cross(bn), an.Dot(bn))) * 180 / math.Pi
}

// RotateTowards 将朝向 from 向 to 旋转，单次最多 maxRad 弧度
func RotateTowards(from, to Vec2, maxRad float64) Vec2 {
	fn, tn := from.Normalize(), to.Normalize()
	if tn.IsZero() {
		return fn
	}
	if fn.IsZero() {
		return tn
	}
	delta := math.Atan2(fn.Cross(tn), fn.Dot(tn))
	if math.Abs(delta) <= maxRad {
		return tn
	}
	if delta < 0 {
		maxRad = -maxRad
	}
	return FromAngle(fn.Angle() + maxRad)
}

// MoveTowards 从 from 向 to 移动至多 step 距离
func MoveTowards(from, to Vec2, step float64) Vec2 {
	d := to.Sub(from)
	l := d.Len()
	if l <= step || l < epsilon {
		return to
	}
	return from.Add(d.Scale(step / l))
}

// Lerp 线性插值
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// Clamp01 截断到 [0,1]
func Clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
