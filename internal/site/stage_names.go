package site

// StageName is the typed identifier of a build pipeline stage.
type StageName string

const (
	StagePrepareOutput   StageName = "prepare_output"
	StageResolveChapters StageName = "resolve_chapters"
	StageLoadFreeze      StageName = "load_freeze"
	StageCheckSignature  StageName = "check_signature"
	StageRenderChapters  StageName = "render_chapters"
	StageWritePages      StageName = "write_pages"
	StageIndexes         StageName = "indexes"
	StageCopyAssets      StageName = "copy_assets"
	StageVerifyLinks     StageName = "verify_links"
	StageFinalizeFreeze  StageName = "finalize_freeze"
	StagePromote         StageName = "promote_output"
)
