package registration

import "path/filepath"

// files are the names an anatomy's steps read and write, all prefixed
// with the anatomy, e.g. "f_rigid.mha"
type files struct{ prefix string }

func (f files) image(folder string, s Stage) string {
	return filepath.Join(folder, f.prefix+"_"+string(s)+".mha")
}

func (f files) transform(folder string, s Stage) string {
	return filepath.Join(folder, f.prefix+"_"+string(s)+".txt")
}

func (f files) inverse(folder string, s Stage) string {
	return filepath.Join(folder, f.prefix+"_i_"+string(s)+".txt")
}

// modified is the stand-alone inverted transform
func (f files) modified(folder string, s Stage) string {
	return filepath.Join(folder, f.prefix+"_m_"+string(s)+".txt")
}

// warped is the level set brought back through a stage
func (f files) warped(folder string, s Stage) string {
	return filepath.Join(folder, f.prefix+"_m_"+string(s)+".mha")
}

// Bone registers a bone with the full rigid, similarity and spline chain
type Bone struct {
	*Engine
	Anatomy string
}

// NewBone returns the registrar of the bone whose files use prefix anatomy
func NewBone(e *Engine, anatomy string) *Bone {
	return &Bone{Engine: e, Anatomy: anatomy}
}

func (b *Bone) files() files { return files{prefix: b.Anatomy} }

func (b *Bone) Rigid(p Paths) error {
	f := b.files()
	return b.register("rigid", b.Params.Rigid, p.Moving,
		f.image(p.Folder, StageRigid), f.transform(p.Folder, StageRigid), p)
}

func (b *Bone) Similarity(p Paths) error {
	f := b.files()
	return b.register("similarity", b.Params.Similarity, f.image(p.Folder, StageRigid),
		f.image(p.Folder, StageSimilarity), f.transform(p.Folder, StageSimilarity), p)
}

func (b *Bone) Spline(p Paths) error {
	f := b.files()
	return b.register("spline", b.Params.Spline, f.image(p.Folder, StageSimilarity),
		f.image(p.Folder, StageSpline), f.transform(p.Folder, StageSpline), p)
}

func (b *Bone) InverseRigid(p Paths) error      { return b.inverseStage(StageRigid, b.Params.InverseRigid, p) }
func (b *Bone) InverseSimilarity(p Paths) error { return b.inverseStage(StageSimilarity, b.Params.InverseSimilarity, p) }
func (b *Bone) InverseSpline(p Paths) error     { return b.inverseStage(StageSpline, b.Params.InverseSpline, p) }

func (b *Bone) inverseStage(s Stage, param string, p Paths) error {
	f := b.files()
	return b.invert("inverse "+string(s), s, param, f.transform(p.Folder, s),
		f.inverse(p.InverseFolder, s), f.modified(p.InverseFolder, s), p)
}

// WarpSpline brings the reference level set through the inverted spline
func (b *Bone) WarpSpline(p Paths) error {
	f := b.files()
	return b.warp("warp spline", p.Levelset, f.modified(p.InverseFolder, StageSpline),
		f.warped(p.InverseFolder, StageSpline), p)
}

func (b *Bone) WarpSimilarity(p Paths) error {
	f := b.files()
	return b.warp("warp similarity", f.warped(p.InverseFolder, StageSpline),
		f.modified(p.InverseFolder, StageSimilarity), f.warped(p.InverseFolder, StageSimilarity), p)
}

func (b *Bone) WarpRigid(p Paths) error {
	f := b.files()
	return b.warp("warp rigid", f.warped(p.InverseFolder, StageSimilarity),
		f.modified(p.InverseFolder, StageRigid), f.warped(p.InverseFolder, StageRigid), p)
}

func (b *Bone) VectorField(p Paths) error {
	return b.vectorField(b.files().transform(p.Folder, StageSpline), p)
}

// Cartilage registers a cartilage after its bone: the rigid and
// similarity stages are the bone's
type Cartilage struct {
	*Engine
	Anatomy string
	Bone    string
}

// NewCartilage returns the registrar of the cartilage with prefix anatomy
// lying on the bone with prefix bone
func NewCartilage(e *Engine, anatomy, bone string) *Cartilage {
	return &Cartilage{Engine: e, Anatomy: anatomy, Bone: bone}
}

func (c *Cartilage) Rigid(Paths) error             { return ErrNotApplicable }
func (c *Cartilage) Similarity(Paths) error        { return ErrNotApplicable }
func (c *Cartilage) InverseRigid(Paths) error      { return ErrNotApplicable }
func (c *Cartilage) InverseSimilarity(Paths) error { return ErrNotApplicable }
func (c *Cartilage) VectorField(Paths) error       { return ErrNotApplicable }

// Spline starts from the bone's similarity result
func (c *Cartilage) Spline(p Paths) error {
	own, bone := files{prefix: c.Anatomy}, files{prefix: c.Bone}
	return c.register("spline", c.Params.Spline, bone.image(p.Folder, StageSimilarity),
		own.image(p.Folder, StageSpline), own.transform(p.Folder, StageSpline), p)
}

func (c *Cartilage) InverseSpline(p Paths) error {
	f := files{prefix: c.Anatomy}
	return c.invert("inverse spline", StageSpline, c.Params.InverseSpline, f.transform(p.Folder, StageSpline),
		f.inverse(p.InverseFolder, StageSpline), f.modified(p.InverseFolder, StageSpline), p)
}

func (c *Cartilage) WarpSpline(p Paths) error {
	f := files{prefix: c.Anatomy}
	return c.warp("warp spline", p.Levelset, f.modified(p.InverseFolder, StageSpline),
		f.warped(p.InverseFolder, StageSpline), p)
}

// WarpSimilarity and WarpRigid use the bone's inverted transforms
func (c *Cartilage) WarpSimilarity(p Paths) error {
	own, bone := files{prefix: c.Anatomy}, files{prefix: c.Bone}
	return c.warp("warp similarity", own.warped(p.InverseFolder, StageSpline),
		bone.modified(p.InverseFolder, StageSimilarity), own.warped(p.InverseFolder, StageSimilarity), p)
}

func (c *Cartilage) WarpRigid(p Paths) error {
	own, bone := files{prefix: c.Anatomy}, files{prefix: c.Bone}
	return c.warp("warp rigid", own.warped(p.InverseFolder, StageSimilarity),
		bone.modified(p.InverseFolder, StageRigid), own.warped(p.InverseFolder, StageRigid), p)
}

var (
	_ Registrar = (*Bone)(nil)
	_ Registrar = (*Cartilage)(nil)
)
