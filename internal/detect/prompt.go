package detect

// Prompt is the instruction sent with every labeled asset. It refers to the
// burned-in "Frame N" labels so the service reports indices of the
// normalized asset, not timestamps.
const Prompt = `You are reviewing a video recorded during a laboratory experiment.

The video plays at 1 frame per second. Every frame carries its index in the
TOP-RIGHT corner ("Frame 0", "Frame 1", ...). Read frame indices from these
labels only; never derive them from playback time.

Two mice are visible:
- L is the mouse on the LEFT half of the picture
- R is the mouse on the RIGHT half of the picture
Left and right refer to the screen, not to the animal's own body.

An experimenter touches the left hind paw of each mouse with a small brush.
In a normal recording each side is brushed exactly once.

What to report for each side:
- The left hind paw is the hind paw on the mouse's own left side.
- Give a [start, end] range of frame indices for the brush contact.
  start is the first labeled frame where the bristles press fully against
  the paw. end is the last labeled frame where that full contact is kept.
- Approach frames, grazes and partial contact do not count.

Return null for a side, and say why in notes, when any of these holds:
- that mouse is never brushed,
- that mouse is brushed two or more separate times,
- you are not confident that exactly one full contact happened.
Never guess. Only give a range for a single clear event.

Answer with strictly valid JSON of this form:
{
  "L": [start_frame, end_frame] or null,
  "R": [start_frame, end_frame] or null,
  "notes": string
}
`
